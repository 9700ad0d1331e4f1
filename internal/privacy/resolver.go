package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sujalbistaa/privacynet/internal/common"
	"github.com/sujalbistaa/privacynet/internal/logging"
	"github.com/sujalbistaa/privacynet/internal/models"
)

// Visibility is the tier a viewer falls into for one comment.
type Visibility string

const (
	// VisibilitySelf is the comment's own author.
	VisibilitySelf Visibility = "self"
	// VisibilityOwner is the author of the post the comment is on.
	VisibilityOwner Visibility = "owner"
	// VisibilityMasked is everyone else.
	VisibilityMasked Visibility = "masked"
)

// HiddenPlaceholder replaces a token whose vault entry is gone.
const HiddenPlaceholder = "[hidden]"

// Classify picks the viewer's tier. Tiers are checked in order self, owner,
// masked. An empty viewer is always masked.
func Classify(viewerID, commentAuthorID, postAuthorID string) Visibility {
	switch {
	case viewerID == "":
		return VisibilityMasked
	case viewerID == commentAuthorID:
		return VisibilitySelf
	case viewerID == postAuthorID:
		return VisibilityOwner
	default:
		return VisibilityMasked
	}
}

// CanSeeRealValues reports whether the tier resolves tokens to vault values.
// It panics on a tier it does not know so a new one cannot slip through
// unhandled.
func (v Visibility) CanSeeRealValues() bool {
	switch v {
	case VisibilitySelf, VisibilityOwner:
		return true
	case VisibilityMasked:
		return false
	}
	panic(fmt.Sprintf("privacy: unhandled visibility %q", string(v)))
}

// MaskedPlaceholder is what a masked viewer sees in place of a token of
// type t.
func MaskedPlaceholder(t string) string {
	if t == "" {
		t = "info"
	}
	return "[" + t + " hidden]"
}

// VaultReader is the lookup side of the vault the Resolver needs.
type VaultReader interface {
	Lookup(ctx context.Context, token string) (models.VaultEntry, error)
}

// ResolvedComment is a comment rendered for one viewer. It must not be
// cached or shared across viewers.
type ResolvedComment struct {
	ID         string     `json:"id"`
	PostID     string     `json:"postId"`
	AuthorID   string     `json:"authorId"`
	Text       string     `json:"text"`
	PiiCount   int        `json:"piiCount"`
	Visibility Visibility `json:"visibility"`
	HasPii     bool       `json:"hasPii"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Resolver rebuilds viewer-specific comment text from stored token text.
// It only reads.
type Resolver struct {
	vault VaultReader
	log   logging.Logger
}

func NewResolver(vault VaultReader, log logging.Logger) *Resolver {
	return &Resolver{vault: vault, log: log}
}

// Resolve renders c for viewerID. Missing or unreadable vault entries turn
// into HiddenPlaceholder; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, c models.Comment, viewerID, postAuthorID string) ResolvedComment {
	vis := Classify(viewerID, c.AuthorID, postAuthorID)
	reveal := vis.CanSeeRealValues()

	matches := scanTokens(c.Text)

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		b.WriteString(c.Text[pos:m.start])
		if reveal {
			b.WriteString(r.reveal(ctx, c, m.token(c.Text)))
		} else {
			b.WriteString(MaskedPlaceholder(m.piiType))
		}
		pos = m.end
	}
	b.WriteString(c.Text[pos:])

	return ResolvedComment{
		ID:         c.ID,
		PostID:     c.PostID,
		AuthorID:   c.AuthorID,
		Text:       b.String(),
		PiiCount:   c.PiiCount,
		Visibility: vis,
		HasPii:     c.PiiCount > 0,
		CreatedAt:  c.CreatedAt,
	}
}

// ResolveAll resolves comments in order for a single viewer.
func (r *Resolver) ResolveAll(ctx context.Context, comments []models.Comment, viewerID, postAuthorID string) []ResolvedComment {
	out := make([]ResolvedComment, 0, len(comments))
	for _, c := range comments {
		out = append(out, r.Resolve(ctx, c, viewerID, postAuthorID))
	}
	return out
}

// reveal returns the vault value for token, provided the entry belongs to c.
// Text typed by a user can contain a token copied from another comment; that
// must not unlock the other comment's value.
func (r *Resolver) reveal(ctx context.Context, c models.Comment, token string) string {
	entry, err := r.vault.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.log.Warn(ctx, "vault lookup failed", "comment_id", c.ID, "error", err)
		}
		return HiddenPlaceholder
	}
	if entry.CommentID != c.ID {
		r.log.Warn(ctx, "token belongs to another comment", "comment_id", c.ID)
		return HiddenPlaceholder
	}
	return entry.Value
}
