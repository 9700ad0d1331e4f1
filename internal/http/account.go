package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sujalbistaa/privacynet/internal/audit"
	"github.com/sujalbistaa/privacynet/internal/models"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

const maxAdminAuditLimit = 500

// AccountExport is the portable copy of a user's data. Comment text stays
// tokenized and vault values are only counted.
type AccountExport struct {
	Profile              models.User      `json:"profile"`
	Posts                []models.Post    `json:"posts"`
	Comments             []models.Comment `json:"comments"`
	VaultTokensSubmitted int64            `json:"vaultTokensSubmitted"`
	ExportedAt           time.Time        `json:"exportedAt"`
}

func (e *Env) GetAuditLog(c *gin.Context) {
	events, err := e.AuditLog.ForUser(c.Request.Context(), identity(c).UserID, audit.DefaultLogLimit)
	if err != nil {
		e.fail(c, err, "Failed to fetch audit log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (e *Env) ExportAccount(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)
	gdb := e.DB.WithContext(ctx)

	out := AccountExport{Posts: []models.Post{}, Comments: []models.Comment{}, ExportedAt: time.Now().UTC()}

	err := gdb.Where("id = ?", id.UserID).Take(&out.Profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		out.Profile = models.User{ID: id.UserID, Name: id.Name}
	} else if err != nil {
		e.fail(c, err, "Failed to export account")
		return
	}

	if err := gdb.Where("author_id = ?", id.UserID).Order("created_at asc").Find(&out.Posts).Error; err != nil {
		e.fail(c, err, "Failed to export account")
		return
	}
	if err := gdb.Where("author_id = ?", id.UserID).Order("created_at asc").Find(&out.Comments).Error; err != nil {
		e.fail(c, err, "Failed to export account")
		return
	}
	n, err := e.Vault.CountByAuthor(ctx, id.UserID)
	if err != nil {
		e.fail(c, err, "Failed to export account")
		return
	}
	out.VaultTokensSubmitted = n

	e.Audit.Log(ctx, audit.Event{
		Name:     audit.DataExported,
		ActorID:  id.UserID,
		TargetID: id.UserID,
		IP:       c.ClientIP(),
		Metadata: map[string]any{"posts": len(out.Posts), "comments": len(out.Comments)},
	})

	c.Header("Content-Disposition", `attachment; filename="privacynet-export.json"`)
	c.JSON(http.StatusOK, out)
}

// DeleteAccount removes the caller's vault entries, comments, posts (with
// every comment on them) and finally the user row.
func (e *Env) DeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()
	uid := identity(c).UserID

	deleted := audit.Event{
		Name:     audit.AccountDeleted,
		ActorID:  uid,
		TargetID: uid,
		IP:       c.ClientIP(),
		Metadata: map[string]any{"status": "requested"},
	}
	e.Audit.Log(ctx, deleted)

	var postIDs []string
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("author_id = ?", uid).Pluck("id", &postIDs).Error; err != nil {
			return err
		}

		var commentIDs []string
		q := tx.Model(&models.Comment{}).Where("author_id = ?", uid)
		if len(postIDs) > 0 {
			q = q.Or("post_id IN ?", postIDs)
		}
		if err := q.Pluck("id", &commentIDs).Error; err != nil {
			return err
		}

		store := e.Vault.WithTx(tx)
		if err := store.DeleteByComments(ctx, commentIDs...); err != nil {
			return err
		}
		if err := store.DeleteByAuthor(ctx, uid); err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("author_id = ?", uid).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", uid).Delete(&models.User{}).Error
	})
	if err != nil {
		deleted.Metadata = map[string]any{"status": "failed"}
		e.Audit.Log(ctx, deleted)
		e.fail(c, err, "Failed to delete account")
		return
	}

	for _, id := range postIDs {
		e.Hub.Publish(ctx, ws.Message{Type: "delete_post", Data: gin.H{"id": id}})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// GetAuditEvents lists recent audit events across all users.
func (e *Env) GetAuditEvents(c *gin.Context) {
	limit := audit.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxAdminAuditLimit)
	}

	events, err := e.AuditLog.Recent(c.Request.Context(), limit)
	if err != nil {
		e.fail(c, err, "Failed to fetch audit events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
