package controllers

import (
	"net/http"
	"time"

	"github.com/campusfind/campusfind-api/config"
	"github.com/campusfind/campusfind-api/models"
	"github.com/gin-gonic/gin"
)

// CreateReportRequest represents the request body for filing a report
type CreateReportRequest struct {
	ReportedUserID uint   `json:"reported_user_id" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
	Description    string `json:"description"`
	MessageIDs     []uint `json:"message_ids"` // messages cited as evidence
}

// ReviewReportRequest represents the request body for reviewing a report
type ReviewReportRequest struct {
	Status string `json:"status" binding:"required"` // reviewed, dismissed, action_taken
}

// CreateReport handles POST /api/v1/reports - files a moderation report,
// optionally citing message ids as evidence. Cited messages survive
// delete-for-everyone while the report is open.
func CreateReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateReportRequest
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

	db := config.GetDB()

	var reported models.User
	if err := db.First(&reported, req.ReportedUserID).Error; err != nil {
		c.PureJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Reported user not found",
			},
		})
		return
	}

	report := models.Report{
		ReportedID:  reported.ID,
		ReporterID:  user.ID,
		Reason:      req.Reason,
		Description: req.Description,
		Status:      models.ReportStatusPending,
	}
	for _, messageID := range req.MessageIDs {
		report.Messages = append(report.Messages, models.ReportedMessage{MessageID: messageID})
	}

	if err := db.Create(&report).Error; err != nil {
		c.PureJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create report",
			},
		})
		return
	}

	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    report,
	})
}

// ListReports handles GET /api/v1/reports - lists reports for admin review
func ListReports(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != "admin" {
		c.PureJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can review reports",
			},
		})
		return
	}

	db := config.GetDB()
	var reports []models.Report
	query := db.Preload("Reported").Preload("Reporter").Preload("Messages").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&reports).Error; err != nil {
		c.PureJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch reports",
			},
		})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reports,
	})
}

// ReviewReport handles PUT /api/v1/reports/:id - transitions a report out of
// pending. Once a report is no longer pending its cited messages lose their
// retention hold.
func ReviewReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != "admin" {
		c.PureJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only admins can review reports",
			},
		})
		return
	}

	reportID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReviewReportRequest
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

	validStatuses := map[string]bool{
		models.ReportStatusReviewed:    true,
		models.ReportStatusDismissed:   true,
		models.ReportStatusActionTaken: true,
	}
	if !validStatuses[req.Status] {
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "status must be 'reviewed', 'dismissed' or 'action_taken'",
			},
		})
		return
	}

	db := config.GetDB()
	var report models.Report
	if err := db.First(&report, reportID).Error; err != nil {
		c.PureJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Report not found",
			},
		})
		return
	}

	now := time.Now()
	report.Status = req.Status
	report.ReviewedAt = &now
	report.ReviewedByID = &user.ID
	if err := db.Save(&report).Error; err != nil {
		c.PureJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update report",
			},
		})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}
