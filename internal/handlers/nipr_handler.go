package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"agentspace/config"
	"agentspace/internal/nipr"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VerificationQueue is wired at startup from main.
var VerificationQueue *nipr.Queue

const niprDocumentDir = "./static/uploads/nipr"

var (
	npnPattern = regexp.MustCompile(`^\d{1,10}$`)
	ssnPattern = regexp.MustCompile(`^\d{4}$`)
)

type verificationInput struct {
	NPN      string `json:"npn" binding:"required"`
	LastName string `json:"lastName" binding:"required"`
	SSNLast4 string `json:"ssnLast4" binding:"required"`
}

func verificationResponse(job *models.VerificationJob, position int) gin.H {
	resp := gin.H{
		"jobId":         job.ID,
		"kind":          job.Kind,
		"status":        job.Status,
		"progress":      job.Progress,
		"message":       job.Message,
		"queuePosition": position,
	}
	if job.Status == models.VerificationStatusCompleted && job.Result != nil {
		resp["carriers"] = job.Result.Carriers
		resp["licenses"] = job.Result.Licenses
	}
	if job.Status == models.VerificationStatusFailed {
		resp["error"] = job.FailureReason
	}
	return resp
}

// conflictWithActiveJob answers a duplicate submit with the job in flight.
func conflictWithActiveJob(c *gin.Context, userID uint) {
	resp := gin.H{"error": "A verification is already in progress"}
	if active, err := VerificationQueue.ActiveForUser(c.Request.Context(), userID); err == nil {
		position, _ := VerificationQueue.Position(c.Request.Context(), active)
		resp["job"] = verificationResponse(active, position)
	}
	c.JSON(http.StatusConflict, resp)
}

// SubmitVerificationHandler starts the automated NIPR retrieval path. An
// already verified agent with a matching NPN gets an immediate result;
// everyone else gets a queued job with its position.
func SubmitVerificationHandler(c *gin.Context) {
	userIDVal, _ := c.Get("user_id")
	userID := userIDVal.(uint)

	var input verificationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NPN, last name and SSN last four are required"})
		return
	}
	input.NPN = strings.TrimSpace(input.NPN)
	if !npnPattern.MatchString(input.NPN) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NPN must be numeric"})
		return
	}
	if !ssnPattern.MatchString(input.SSNLast4) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SSN last four must be exactly 4 digits"})
		return
	}

	// Immediate path: verification already on file for this NPN.
	var user models.User
	if err := config.DB.First(&user, userID).Error; err == nil {
		if user.NiprVerified && user.NPN == input.NPN {
			c.JSON(http.StatusOK, gin.H{
				"status":  models.VerificationStatusCompleted,
				"message": "Producer already verified",
				"npn":     user.NPN,
			})
			return
		}
	}

	// One live job per agent; resubmitting returns the job in flight.
	if _, err := VerificationQueue.ActiveForUser(c.Request.Context(), userID); err == nil {
		conflictWithActiveJob(c, userID)
		return
	}

	job := models.VerificationJob{
		UserID:   userID,
		Kind:     models.VerificationKindAutomated,
		NPN:      input.NPN,
		LastName: strings.TrimSpace(input.LastName),
		SSNLast4: input.SSNLast4,
	}
	if err := VerificationQueue.Enqueue(c.Request.Context(), &job); err != nil {
		// The unique index catches submits racing past the check above.
		if errors.Is(err, nipr.ErrActive) {
			conflictWithActiveJob(c, userID)
			return
		}
		slog.Error("failed to enqueue verification job", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start verification"})
		return
	}

	position, err := VerificationQueue.Position(c.Request.Context(), &job)
	if err != nil {
		position = 0
	}
	c.JSON(http.StatusAccepted, verificationResponse(&job, position))
}

// SubmitVerificationDocumentHandler starts the alternate completion path: the
// agent uploads their own NIPR PDB report instead of supplying credentials.
func SubmitVerificationDocumentHandler(c *gin.Context) {
	userIDVal, _ := c.Get("user_id")
	userID := userIDVal.(uint)

	file, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "License report file is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" && ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type, expected PDF or an image"})
		return
	}

	if _, err := VerificationQueue.ActiveForUser(c.Request.Context(), userID); err == nil {
		conflictWithActiveJob(c, userID)
		return
	}

	if err := ensureDir(niprDocumentDir); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}
	storedPath := filepath.Join(niprDocumentDir, fmt.Sprintf("%s%s", uuid.NewString(), ext))
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	job := models.VerificationJob{
		UserID:       userID,
		Kind:         models.VerificationKindDocument,
		DocumentPath: storedPath,
	}
	if err := VerificationQueue.Enqueue(c.Request.Context(), &job); err != nil {
		if errors.Is(err, nipr.ErrActive) {
			conflictWithActiveJob(c, userID)
			return
		}
		slog.Error("failed to enqueue document verification", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start verification"})
		return
	}

	position, err := VerificationQueue.Position(c.Request.Context(), &job)
	if err != nil {
		position = 0
	}
	c.JSON(http.StatusAccepted, verificationResponse(&job, position))
}

// GetVerificationHandler polls one job. Clients persist the job id locally
// and call this after a reload to resume watching.
func GetVerificationHandler(c *gin.Context) {
	job, err := VerificationQueue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, nipr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Verification job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	userIDVal, _ := c.Get("user_id")
	if job.UserID != userIDVal.(uint) && !hasContextPermission(c, "verifications_view_all") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your verification job"})
		return
	}

	position, err := VerificationQueue.Position(c.Request.Context(), job)
	if err != nil {
		position = 0
	}
	c.JSON(http.StatusOK, verificationResponse(job, position))
}

// GetActiveVerificationHandler returns the caller's in-flight job, if any.
func GetActiveVerificationHandler(c *gin.Context) {
	userIDVal, _ := c.Get("user_id")
	job, err := VerificationQueue.ActiveForUser(c.Request.Context(), userIDVal.(uint))
	if err != nil {
		if errors.Is(err, nipr.ErrNotFound) {
			c.JSON(http.StatusNoContent, nil)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	position, err := VerificationQueue.Position(c.Request.Context(), job)
	if err != nil {
		position = 0
	}
	c.JSON(http.StatusOK, verificationResponse(job, position))
}

// VerificationWSEndpoint upgrades to a websocket stream of progress events
// for one job. The stream replays the job's current state immediately so a
// client attaching mid-job is not left waiting for the next transition.
func VerificationWSEndpoint(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	job, err := VerificationQueue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Verification job not found"})
		return
	}
	if job.UserID != userIDVal.(uint) && !hasContextPermission(c, "verifications_view_all") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your verification job"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade verification stream", "error", err)
		return
	}

	client := &progressClient{
		hub:   VerificationHub,
		conn:  conn,
		send:  make(chan []byte, 16),
		jobID: job.ID,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	// Snapshot so late subscribers see where the job stands right away.
	position, _ := VerificationQueue.Position(c.Request.Context(), job)
	switch job.Status {
	case models.VerificationStatusCompleted:
		VerificationHub.PublishCompleted(job.ID, job.Result)
	case models.VerificationStatusFailed:
		VerificationHub.PublishFailed(job.ID, job.FailureReason)
	default:
		VerificationHub.PublishProgress(job.ID, job.Progress, job.Message, position)
	}
}
