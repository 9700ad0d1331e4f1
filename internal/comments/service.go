// Package comments runs the comment submission, read, inbox and delete
// paths on top of the privacy engine and the vault.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/privacynet/internal/audit"
	"github.com/sujalbistaa/privacynet/internal/auth"
	"github.com/sujalbistaa/privacynet/internal/common"
	"github.com/sujalbistaa/privacynet/internal/logging"
	"github.com/sujalbistaa/privacynet/internal/models"
	"github.com/sujalbistaa/privacynet/internal/privacy"
	"github.com/sujalbistaa/privacynet/internal/vault"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

// AuditLogger accepts audit events without blocking.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Event)
}

// Publisher broadcasts realtime events.
type Publisher interface {
	Publish(ctx context.Context, msg ws.Message)
}

// View is a resolved comment with its author's display name.
type View struct {
	privacy.ResolvedComment
	AuthorName string `json:"authorName"`
}

// SubmitInput is a new comment from an authenticated user.
type SubmitInput struct {
	PostID    string
	Text      string
	Submitter auth.Identity
	IP        string
}

// SubmitResult is returned to the submitter.
type SubmitResult struct {
	Comment   View `json:"comment"`
	PiiMasked int  `json:"piiMasked"`
	// PartialScan is set when some detector findings were discarded, so the
	// submitter knows masking may be incomplete.
	PartialScan bool `json:"partialScan"`
}

type Service struct {
	db        *gorm.DB
	vault     *vault.GormStore
	tokenizer *privacy.Tokenizer
	resolver  *privacy.Resolver
	audit     AuditLogger
	hub       Publisher
	log       logging.Logger
	maxLen    int
}

func NewService(db *gorm.DB, tokenizer *privacy.Tokenizer, auditLog AuditLogger, hub Publisher, log logging.Logger, maxLen int) *Service {
	store := vault.NewGormStore(db)
	return &Service{
		db:        db,
		vault:     store,
		tokenizer: tokenizer,
		resolver:  privacy.NewResolver(store, log),
		audit:     auditLog,
		hub:       hub,
		log:       log,
		maxLen:    maxLen,
	}
}

// Submit tokenizes and stores a comment. PII handling problems never fail
// the submission; only invalid input, a missing post or a storage error do.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	text := strings.TrimSpace(in.Text)
	if in.PostID == "" || text == "" {
		return SubmitResult{}, fmt.Errorf("%w: postId and text required", common.ErrInvalidInput)
	}
	if s.maxLen > 0 && utf8.RuneCountInString(text) > s.maxLen {
		return SubmitResult{}, fmt.Errorf("%w: comment longer than %d characters", common.ErrInvalidInput, s.maxLen)
	}

	post, err := s.post(ctx, in.PostID)
	if err != nil {
		return SubmitResult{}, err
	}

	commentID := uuid.NewString()
	res := s.tokenizer.Tokenize(ctx, text, commentID, in.Submitter.UserID)

	c := models.Comment{
		ID:        commentID,
		PostID:    post.ID,
		AuthorID:  in.Submitter.UserID,
		Text:      res.Text,
		PiiCount:  res.PiiCount,
		CreatedAt: time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := EnsureUser(tx, in.Submitter); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return s.vault.WithTx(tx).Save(ctx, res.Entries)
	})
	if err != nil {
		return SubmitResult{}, err
	}

	if res.PiiCount > 0 {
		s.audit.Log(ctx, audit.Event{
			Name:      audit.PiiSubmitted,
			ActorID:   in.Submitter.UserID,
			PostID:    post.ID,
			CommentID: c.ID,
			IP:        in.IP,
			Metadata: map[string]any{
				"pii_count":    res.PiiCount,
				"partial_scan": res.PartialScan(),
			},
		})
	}

	s.log.Info(ctx, "comment stored", "comment_id", c.ID, "post_id", post.ID, "pii_count", res.PiiCount, "degraded", res.Degraded)

	s.hub.Publish(ctx, ws.Message{Type: "new_comment", Data: View{
		ResolvedComment: s.resolver.Resolve(ctx, c, "", post.AuthorID),
		AuthorName:      in.Submitter.Name,
	}})

	return SubmitResult{
		Comment: View{
			ResolvedComment: s.resolver.Resolve(ctx, c, in.Submitter.UserID, post.AuthorID),
			AuthorName:      in.Submitter.Name,
		},
		PiiMasked:   res.PiiCount,
		PartialScan: res.PartialScan(),
	}, nil
}

// List returns the post's comments, oldest first, rendered for viewerID,
// together with the post author's id.
func (s *Service) List(ctx context.Context, postID, viewerID string) ([]View, string, error) {
	post, err := s.post(ctx, postID)
	if err != nil {
		return nil, "", err
	}

	var rows []models.Comment
	err = s.db.WithContext(ctx).
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, "", fmt.Errorf("list comments: %w", err)
	}

	names, err := s.authorNames(ctx, rows)
	if err != nil {
		return nil, "", err
	}

	resolved := s.resolver.ResolveAll(ctx, rows, viewerID, post.AuthorID)
	out := make([]View, 0, len(resolved))
	for _, rc := range resolved {
		out = append(out, View{ResolvedComment: rc, AuthorName: names[rc.AuthorID]})
	}
	return out, post.AuthorID, nil
}

// Inbox returns every PII value submitted on postID. Only the post author
// may call it; anyone else gets common.ErrForbidden before the vault is
// touched. Each successful read is audited.
func (s *Service) Inbox(ctx context.Context, postID, requesterID, ip string) ([]vault.InboxItem, error) {
	post, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	if requesterID == "" || post.AuthorID != requesterID {
		return nil, fmt.Errorf("%w: only the post author can open its inbox", common.ErrForbidden)
	}

	items, err := s.vault.Inbox(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		Name:     audit.PiiAccessed,
		ActorID:  requesterID,
		PostID:   post.ID,
		IP:       ip,
		Metadata: map[string]any{"inbox_size": len(items)},
	})
	return items, nil
}

// Delete removes a comment and its vault entries. Only the comment author
// may delete it.
func (s *Service) Delete(ctx context.Context, commentID, requesterID, ip string) error {
	var c models.Comment
	err := s.db.WithContext(ctx).Where("id = ?", commentID).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("comment %w", common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load comment: %w", err)
	}
	if c.AuthorID != requesterID {
		return fmt.Errorf("%w: not your comment", common.ErrForbidden)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.vault.WithTx(tx).DeleteByComments(ctx, c.ID); err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, "id = ?", c.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	s.audit.Log(ctx, audit.Event{
		Name:      audit.CommentDeleted,
		ActorID:   requesterID,
		PostID:    c.PostID,
		CommentID: c.ID,
		IP:        ip,
		Metadata:  map[string]any{"pii_count": c.PiiCount},
	})
	s.hub.Publish(ctx, ws.Message{Type: "delete_comment", Data: map[string]string{"id": c.ID, "postId": c.PostID}})
	return nil
}

func (s *Service) post(ctx context.Context, postID string) (models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, fmt.Errorf("post %w", common.ErrNotFound)
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("load post: %w", err)
	}
	return p, nil
}

func (s *Service) authorNames(ctx context.Context, rows []models.Comment) (map[string]string, error) {
	names := make(map[string]string)
	if len(rows) == 0 {
		return names, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := names[r.AuthorID]; !ok {
			names[r.AuthorID] = ""
			ids = append(ids, r.AuthorID)
		}
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// EnsureUser creates the local row for id, refreshing the display name when
// the token carries one.
func EnsureUser(tx *gorm.DB, id auth.Identity) error {
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if id.Name != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}
	}
	err := tx.Clauses(onConflict).Create(&models.User{ID: id.UserID, Name: id.Name}).Error
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}
