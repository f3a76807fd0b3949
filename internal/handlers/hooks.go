package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slideflow/internal/hooks"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

type createHookSessionRequest struct {
	ImageURLs []string `json:"imageUrls" binding:"required"`
	Prompt    string   `json:"prompt"`
}

type hookVideoResponse struct {
	ID             string     `json:"id"`
	SourceImageURL string     `json:"sourceImageUrl"`
	PredictionID   *string    `json:"predictionId"`
	Status         string     `json:"status"`
	VideoURL       *string    `json:"videoUrl"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	UsedAt         *time.Time `json:"usedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toHookVideoResponse(video models.HookGeneratedVideo) hookVideoResponse {
	return hookVideoResponse{
		ID:             video.ID,
		SourceImageURL: video.SourceImageURL,
		PredictionID:   video.PredictionID,
		Status:         string(video.Status),
		VideoURL:       video.VideoURL,
		ErrorMessage:   video.ErrorMessage,
		UsedAt:         video.UsedAt,
		CreatedAt:      video.CreatedAt,
	}
}

func (h HandlerSet) CreateHookSession(c *gin.Context) {
	var req createHookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, videos, err := h.hookSvc.CreateSession(c.Request.Context(), hooks.CreateSessionRequest{
		ImageURLs: req.ImageURLs,
		Prompt:    req.Prompt,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]hookVideoResponse, 0, len(videos))
	for _, video := range videos {
		items = append(items, toHookVideoResponse(video))
	}
	c.JSON(http.StatusAccepted, gin.H{
		"session": gin.H{"id": session.ID, "status": session.Status},
		"videos":  items,
	})
}

func (h HandlerSet) GetHookSession(c *gin.Context) {
	session, err := h.hookRepo.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrHookSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	videos, err := h.hookRepo.ListVideosBySession(c.Request.Context(), session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]hookVideoResponse, 0, len(videos))
	for _, video := range videos {
		items = append(items, toHookVideoResponse(video))
	}
	c.JSON(http.StatusOK, gin.H{
		"session": gin.H{"id": session.ID, "status": session.Status, "createdAt": session.CreatedAt},
		"videos":  items,
	})
}

// MarkHookVideoUsed stamps the moment an operator pulls a finished hook
// video into a post.
func (h HandlerSet) MarkHookVideoUsed(c *gin.Context) {
	err := h.hookRepo.MarkVideoUsed(c.Request.Context(), c.Param("videoId"), time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrHookVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReplicateWebhook receives prediction callbacks; the hooks package owns
// verification and reconciliation.
func (h HandlerSet) ReplicateWebhook(c *gin.Context) {
	h.webhook.Handle(c)
}
