// Package vault stores the real PII values behind comment tokens.
//
// Only two read paths exist: Lookup, used by the Resolver for one token at a
// time, and Inbox, the bulk per-post dump for the post author. Nothing else
// in the server reads a vault value.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/privacynet/internal/common"
	"github.com/sujalbistaa/privacynet/internal/models"
)

// InboxItem is one PII value submitted on a post, with who submitted it.
type InboxItem struct {
	Value         string    `json:"value"`
	PiiType       string    `json:"piiType"`
	CreatedAt     time.Time `json:"createdAt"`
	CommentID     string    `json:"commentId"`
	SubmitterID   string    `json:"submitterId"`
	SubmitterName string    `json:"submitterName"`
}

// Store is the vault contract.
type Store interface {
	Save(ctx context.Context, entries []models.VaultEntry) error
	Lookup(ctx context.Context, token string) (models.VaultEntry, error)
	Inbox(ctx context.Context, postID string) ([]InboxItem, error)
}

// GormStore is a Store on top of gorm. Use WithTx to take part in a
// caller's transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	return &GormStore{db: tx}
}

// Save inserts entries, ignoring tokens that already exist so retries are
// harmless.
func (s *GormStore) Save(ctx context.Context, entries []models.VaultEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&entries).Error
	if err != nil {
		return fmt.Errorf("vault save: %w", err)
	}
	return nil
}

// Lookup returns the entry for token or common.ErrNotFound.
func (s *GormStore) Lookup(ctx context.Context, token string) (models.VaultEntry, error) {
	var e models.VaultEntry
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.VaultEntry{}, common.ErrNotFound
	}
	if err != nil {
		return models.VaultEntry{}, fmt.Errorf("vault lookup: %w", err)
	}
	return e, nil
}

// Inbox returns every value submitted in comments on postID, oldest first.
// Callers must have checked that the requester authored the post.
func (s *GormStore) Inbox(ctx context.Context, postID string) ([]InboxItem, error) {
	var items []InboxItem
	err := s.db.WithContext(ctx).
		Table("vault_entries AS ve").
		Select("ve.value, ve.pii_type, ve.created_at, ve.comment_id, ve.author_id AS submitter_id, COALESCE(u.name, '') AS submitter_name").
		Joins("JOIN comments c ON ve.comment_id = c.id").
		Joins("LEFT JOIN users u ON ve.author_id = u.id").
		Where("c.post_id = ?", postID).
		Order("ve.created_at ASC, c.created_at ASC, ve.comment_id ASC, ve.position ASC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("vault inbox: %w", err)
	}
	if items == nil {
		items = []InboxItem{}
	}
	return items, nil
}

// DeleteByComments removes the entries of the given comments.
func (s *GormStore) DeleteByComments(ctx context.Context, commentIDs ...string) error {
	if len(commentIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("comment_id IN ?", commentIDs).Delete(&models.VaultEntry{}).Error
	if err != nil {
		return fmt.Errorf("vault delete by comment: %w", err)
	}
	return nil
}

// DeleteByAuthor removes every entry submitted by authorID.
func (s *GormStore) DeleteByAuthor(ctx context.Context, authorID string) error {
	err := s.db.WithContext(ctx).Where("author_id = ?", authorID).Delete(&models.VaultEntry{}).Error
	if err != nil {
		return fmt.Errorf("vault delete by author: %w", err)
	}
	return nil
}

// CountByAuthor reports how many values authorID has submitted. Used by data
// export, which never includes the values themselves.
func (s *GormStore) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.VaultEntry{}).Where("author_id = ?", authorID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("vault count: %w", err)
	}
	return n, nil
}
