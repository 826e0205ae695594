package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/campusfind/campusfind-api/config"
	"github.com/campusfind/campusfind-api/middleware"
	"github.com/campusfind/campusfind-api/models"
	"github.com/campusfind/campusfind-api/services"
	"github.com/gin-gonic/gin"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	ReceiverID       uint     `json:"receiver_id" binding:"required"`
	Text             string   `json:"text" binding:"required"`
	ReferencedItemID *uint    `json:"referenced_item_id"`
	ReplyToMessageID *uint    `json:"reply_to_message_id"`
	ImagesBase64     []string `json:"images_base64"`
}

// StartConversationRequest represents the request body for starting a conversation
type StartConversationRequest struct {
	Text string `json:"text" binding:"required"`
}

// currentUser resolves the authenticated caller to a database user. On
// failure it writes the error response and returns false.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.PureJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.PureJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return nil, false
	}

	return &user, true
}

// writeServiceError translates a messaging core error into the API envelope
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.PureJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Requested resource not found",
			},
		})
	case errors.Is(err, services.ErrBlocked):
		c.PureJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "BLOCKED",
				"message": "Messages between these users are blocked",
			},
		})
	case errors.Is(err, services.ErrForbidden):
		c.PureJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to perform this action",
			},
		})
	default:
		log.Printf("internal error: %v", err)
		c.PureJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Something went wrong",
			},
		})
	}
}

// parseIDParam parses a numeric URL parameter. On failure it writes the
// error response and returns false.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid " + name + " parameter",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// SendMessage handles POST /api/v1/messages - sends a direct message
func SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	message, err := services.GetMessageService().Send(
		user.ID, req.ReceiverID, req.Text,
		req.ReferencedItemID, req.ReplyToMessageID, req.ImagesBase64,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// StartConversation handles POST /api/v1/conversations/:userId/messages -
// sends the first plain-text message to a user (used from a post's
// "Send Message" button)
func StartConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	otherID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	message, err := services.GetMessageService().Send(user.ID, otherID, req.Text, nil, nil, nil)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// ListConversations handles GET /api/v1/conversations - one entry per
// counterpart with the latest visible message and the unread count
func ListConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	conversations, err := services.GetMessageService().Conversations(user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    conversations,
	})
}

// GetConversationMessages handles GET /api/v1/conversations/:userId/messages -
// returns the visible thread with the other user, ascending by sent time,
// and marks messages from that user as read
func GetConversationMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	otherID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	svc := services.GetMessageService()

	// Viewing the thread marks it read; flip the flags first so the payload
	// reflects the state the caller leaves behind
	if err := svc.MarkRead(user.ID, otherID); err != nil {
		writeServiceError(c, err)
		return
	}

	messages, err := svc.ThreadBetween(user.ID, otherID, user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// Attach presigned URLs for any attachments
	imageService := services.GetImageService()
	for i := range messages {
		images, err := svc.ImagesFor(messages[i].ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		for j := range images {
			url, err := imageService.GetImageURL(images[j].S3Key)
			if err != nil {
				log.Printf("warning: failed to presign attachment %s: %v", images[j].S3Key, err)
				continue
			}
			images[j].URL = url
		}
		messages[i].Images = images
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// ClearConversation handles DELETE /api/v1/conversations/:userId - hides
// every message in the thread from the caller's side only
func ClearConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	otherID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	if err := services.GetMessageService().ClearConversation(user.ID, otherID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Messages cleared successfully",
	})
}

// DeleteMessage handles DELETE /api/v1/messages/:id?scope=me|everyone -
// deletes a message for the caller only, or for both sides (sender only)
func DeleteMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	messageID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	scope := c.DefaultQuery("scope", "me")
	svc := services.GetMessageService()

	var err error
	switch scope {
	case "me":
		err = svc.DeleteForSelf(messageID, user.ID)
	case "everyone":
		err = svc.DeleteForEveryone(messageID, user.ID)
	default:
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "scope must be 'me' or 'everyone'",
			},
		})
		return
	}

	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message deleted successfully",
	})
}
