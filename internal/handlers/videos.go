package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slideflow/internal/ids"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

type ingestRequest struct {
	ShareURL string `json:"shareUrl" binding:"required"`
}

type videoResponse struct {
	ID             string    `json:"id"`
	ShareURL       string    `json:"shareUrl"`
	AuthorHandle   string    `json:"authorHandle"`
	Caption        string    `json:"caption"`
	CoverURL       string    `json:"coverUrl"`
	OriginalImages []string  `json:"originalImages"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toVideoResponse(video models.SourceVideo) videoResponse {
	return videoResponse{
		ID:             video.ID,
		ShareURL:       video.ShareURL,
		AuthorHandle:   video.AuthorHandle,
		Caption:        video.Caption,
		CoverURL:       video.CoverURL,
		OriginalImages: video.OriginalImages,
		CreatedAt:      video.CreatedAt,
	}
}

// IngestVideo scrapes a TikTok share URL and persists the post's carousel.
func (h HandlerSet) IngestVideo(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "share_url_required"})
		return
	}

	post, err := h.tiktok.ScrapePost(c.Request.Context(), req.ShareURL)
	if err != nil {
		h.log.Error().Err(err).Str("share_url", req.ShareURL).Msg("scrape failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	video := models.SourceVideo{
		ID:             ids.New(),
		ShareURL:       req.ShareURL,
		AuthorHandle:   post.AuthorHandle,
		Caption:        post.Caption,
		CoverURL:       post.CoverURL,
		OriginalImages: post.Images,
	}
	if err := h.videos.Create(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	video.CreatedAt = time.Now().UTC()
	c.JSON(http.StatusCreated, gin.H{"video": toVideoResponse(video)})
}

func (h HandlerSet) ListVideos(c *gin.Context) {
	limit, offset := pagination(c, 50)

	videos, err := h.videos.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		items = append(items, toVideoResponse(video))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetVideo(c *gin.Context) {
	video, err := h.videos.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": toVideoResponse(video)})
}
