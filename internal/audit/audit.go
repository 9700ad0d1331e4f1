// Package audit records sensitive actions: PII submissions, owner inbox
// reads, exports and deletions. Recording is fire-and-forget; a failed or
// dropped audit write is logged and never fails the action it describes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/privacynet/internal/models"
)

// Event names.
const (
	PiiSubmitted   = "pii.submitted"
	PiiAccessed    = "pii.accessed"
	CommentDeleted = "comment.deleted"
	PostDeleted    = "post.deleted"
	DataExported   = "user.data.exported"
	AccountDeleted = "user.account.deleted"
)

// DefaultLogLimit caps audit log reads when no limit is given.
const DefaultLogLimit = 50

// Event is a transport-agnostic audit record.
type Event struct {
	Name      string
	ActorID   string
	TargetID  string
	PostID    string
	CommentID string
	IP        string
	Metadata  map[string]any
	At        time.Time
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// GormSink writes events to the audit_events table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Record(ctx context.Context, e Event) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("audit metadata: %w", err)
		}
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	row := models.AuditEvent{
		ID:        uuid.NewString(),
		Event:     e.Name,
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		PostID:    e.PostID,
		CommentID: e.CommentID,
		IPAddress: e.IP,
		Metadata:  string(meta),
		CreatedAt: e.At,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}

// ForUser returns events where userID is the actor or the target, newest
// first.
func (s *GormSink) ForUser(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	var out []models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("actor_id = ? OR target_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("audit read: %w", err)
	}
	return out, nil
}

// Recent returns the latest events across all users.
func (s *GormSink) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	var out []models.AuditEvent
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("audit read: %w", err)
	}
	return out, nil
}
