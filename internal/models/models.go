package models

import (
	"time"
)

// User is the local record of an account. Registration and credentials live
// in the identity service; this row exists so content and vault entries can
// reference their author and cascade when the account is removed.
type User struct {
	ID           string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string       `gorm:"not null;default:''" json:"name"`
	CreatedAt    time.Time    `json:"createdAt"`
	Posts        []Post       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Comments     []Comment    `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	VaultEntries []VaultEntry `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
}

// Post is a piece of content other users comment on.
type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AuthorID  string    `gorm:"not null;index;type:varchar(64)" json:"authorId"`
	Content   string    `gorm:"not null" json:"content"`
	Tag       string    `gorm:"not null;default:''" json:"tag"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	Comments  []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Comment is stored with its PII already replaced by vault tokens. Text never
// holds raw PII once persisted.
type Comment struct {
	ID           string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PostID       string       `gorm:"not null;index;type:varchar(64)" json:"postId"`
	AuthorID     string       `gorm:"not null;index;type:varchar(64)" json:"authorId"`
	Text         string       `gorm:"not null" json:"text"`
	PiiCount     int          `gorm:"not null;default:0" json:"piiCount"`
	CreatedAt    time.Time    `gorm:"index" json:"createdAt"`
	VaultEntries []VaultEntry `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
}

// VaultEntry maps an opaque token to the PII value it replaced. Entries are
// written once and only removed by cascade from their comment or author.
type VaultEntry struct {
	Token     string    `gorm:"primaryKey;type:varchar(128)" json:"token"`
	PiiType   string    `gorm:"not null;type:varchar(16)" json:"piiType"`
	Value     string    `gorm:"not null" json:"-"`
	CommentID string    `gorm:"not null;index;type:varchar(64)" json:"commentId"`
	AuthorID  string    `gorm:"not null;index;type:varchar(64)" json:"authorId"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEvent records a sensitive action. Actor and target are plain ids so
// the trail survives deletion of the accounts it mentions.
type AuditEvent struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Event     string    `gorm:"not null;index;type:varchar(64)" json:"event"`
	ActorID   string    `gorm:"index;type:varchar(64)" json:"actorId,omitempty"`
	TargetID  string    `gorm:"index;type:varchar(64)" json:"targetId,omitempty"`
	PostID    string    `gorm:"type:varchar(64)" json:"postId,omitempty"`
	CommentID string    `gorm:"type:varchar(64)" json:"commentId,omitempty"`
	IPAddress string    `gorm:"type:varchar(64)" json:"ipAddress,omitempty"`
	Metadata  string    `gorm:"not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// All lists every model in dependency order for migrations.
func All() []any {
	return []any{&User{}, &Post{}, &Comment{}, &VaultEntry{}, &AuditEvent{}}
}
