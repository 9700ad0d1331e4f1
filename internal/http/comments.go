package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/privacynet/internal/comments"
)

type CreateCommentInput struct {
	PostID string `json:"postId" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

func (e *Env) GetComments(c *gin.Context) {
	postID := c.Param("postId")
	views, postAuthorID, err := e.Comments.List(c.Request.Context(), postID, identity(c).UserID)
	if err != nil {
		e.fail(c, err, "Failed to fetch comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"postId": postID, "postAuthorId": postAuthorID, "comments": views})
}

func (e *Env) CreateComment(c *gin.Context) {
	var input CreateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	res, err := e.Comments.Submit(c.Request.Context(), comments.SubmitInput{
		PostID:    input.PostID,
		Text:      input.Text,
		Submitter: identity(c),
		IP:        c.ClientIP(),
	})
	if err != nil {
		e.fail(c, err, "Failed to create comment")
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (e *Env) DeleteComment(c *gin.Context) {
	if err := e.Comments.Delete(c.Request.Context(), c.Param("id"), identity(c).UserID, c.ClientIP()); err != nil {
		e.fail(c, err, "Failed to delete comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

// GetInbox lists the PII submitted on a post. Post author only.
func (e *Env) GetInbox(c *gin.Context) {
	postID := c.Param("postId")
	items, err := e.Comments.Inbox(c.Request.Context(), postID, identity(c).UserID, c.ClientIP())
	if err != nil {
		e.fail(c, err, "Failed to fetch inbox")
		return
	}
	c.JSON(http.StatusOK, gin.H{"postId": postID, "items": items})
}
