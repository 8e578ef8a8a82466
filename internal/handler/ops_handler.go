package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/repository"
	"github.com/vhvplatform/go-reminder-engine/internal/scheduler"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
)

// OpsHandler exposes pending-work introspection and alarm cancellation
type OpsHandler struct {
	broker        *broker.Broker
	engine        *scheduler.Engine
	notifications *repository.NotificationRepository
	log           *logger.Logger
}

// NewOpsHandler creates a new ops handler
func NewOpsHandler(b *broker.Broker, engine *scheduler.Engine, notifications *repository.NotificationRepository, log *logger.Logger) *OpsHandler {
	return &OpsHandler{
		broker:        b,
		engine:        engine,
		notifications: notifications,
		log:           log,
	}
}

var opsQueues = []string{
	scheduler.QueueReminders,
	scheduler.QueueNotifications,
	scheduler.QueuePlanning,
	scheduler.QueueEmail,
	scheduler.QueueCleanup,
}

// GetQueues reports the pending depth of every queue
func (h *OpsHandler) GetQueues(c *gin.Context) {
	depths := make(map[string]int, len(opsQueues))
	for _, q := range opsQueues {
		depths[q] = len(h.broker.ListPending(q))
	}
	c.JSON(http.StatusOK, gin.H{"queues": depths})
}

// GetPendingJobs lists the not-yet-ready jobs of one queue
func (h *OpsHandler) GetPendingJobs(c *gin.Context) {
	queue := c.Param("queue")

	jobs := h.broker.ListPending(queue)
	out := make([]gin.H, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, gin.H{
			"id":       j.ID,
			"kind":     j.Payload.Kind,
			"user_id":  j.Payload.UserID,
			"ready_at": j.ReadyAt,
			"attempt":  j.Attempt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue, "jobs": out})
}

// RemovePendingJob deletes one pending job by id
func (h *OpsHandler) RemovePendingJob(c *gin.Context) {
	queue := c.Param("queue")
	jobID := c.Param("id")

	if !h.broker.Remove(queue, jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found or already fired"})
		return
	}
	h.log.Info("Removed pending job", "queue", queue, "job_id", jobID)
	c.JSON(http.StatusOK, gin.H{"removed": jobID})
}

// CancelAlarmNotifications removes one alarm's pending ring notifications
func (h *OpsHandler) CancelAlarmNotifications(c *gin.Context) {
	alarmID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("user_id is required", nil))
		return
	}

	removed := h.engine.CancelAlarmPushNotifications(alarmID, userID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// CancelAllAlarmNotifications removes every pending ring notification of a user
func (h *OpsHandler) CancelAllAlarmNotifications(c *gin.Context) {
	userID := c.Param("user_id")

	removed := h.engine.CancelAllPendingAlarmNotifications(userID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetNotification retrieves one delivery audit record
func (h *OpsHandler) GetNotification(c *gin.Context) {
	n, err := h.notifications.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if apperrors.IsNotFound(err) || apperrors.IsValidation(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		h.log.Error("Failed to get notification", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get notification"})
		return
	}
	c.JSON(http.StatusOK, n)
}
