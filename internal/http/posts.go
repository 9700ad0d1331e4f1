package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sujalbistaa/privacynet/internal/audit"
	"github.com/sujalbistaa/privacynet/internal/comments"
	"github.com/sujalbistaa/privacynet/internal/models"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

const postListLimit = 100

type CreatePostInput struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
	Tag     string `json:"tag" binding:"max=32"`
}

func (e *Env) GetPosts(c *gin.Context) {
	posts := []models.Post{}
	if err := e.DB.WithContext(c.Request.Context()).Order("created_at desc").Limit(postListLimit).Find(&posts).Error; err != nil {
		e.fail(c, err, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (e *Env) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: content is empty"})
		return
	}

	ctx := c.Request.Context()
	id := identity(c)
	post := models.Post{
		ID:        uuid.NewString(),
		AuthorID:  id.UserID,
		Content:   content,
		Tag:       strings.TrimSpace(input.Tag),
		CreatedAt: time.Now(),
	}
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := comments.EnsureUser(tx, id); err != nil {
			return err
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		e.fail(c, err, "Failed to create post")
		return
	}

	e.Hub.Publish(ctx, ws.Message{Type: "new_post", Data: post})
	c.JSON(http.StatusCreated, post)
}

var errPostNotFound = errors.New("post not found")

// DeletePost removes a post with its comments and their vault entries.
// Only the author may delete.
func (e *Env) DeletePost(c *gin.Context) {
	ctx := c.Request.Context()
	uid := identity(c).UserID
	postID := c.Param("id")

	var post models.Post
	var commentIDs []string
	forbidden := false

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", postID).Take(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errPostNotFound
			}
			return err
		}
		if post.AuthorID != uid {
			forbidden = true
			return nil
		}
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := e.Vault.WithTx(tx).DeleteByComments(ctx, commentIDs...); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", post.ID).Delete(&models.Post{}).Error
	})

	switch {
	case errors.Is(err, errPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	case err != nil:
		e.fail(c, err, "Failed to delete post")
		return
	case forbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden: not your post"})
		return
	}

	e.Audit.Log(ctx, audit.Event{
		Name:     audit.PostDeleted,
		ActorID:  uid,
		PostID:   post.ID,
		IP:       c.ClientIP(),
		Metadata: map[string]any{"comment_count": len(commentIDs)},
	})
	e.Hub.Publish(ctx, ws.Message{Type: "delete_post", Data: gin.H{"id": post.ID}})

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}
