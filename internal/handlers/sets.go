package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slideflow/internal/generation"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

type createSetsRequest struct {
	SourceVideoID     string `json:"sourceVideoId" binding:"required"`
	Variants          int    `json:"variants"`
	PromptFirstSlide  string `json:"promptFirstSlide"`
	PromptOtherSlides string `json:"promptOtherSlides"`
	QualityInput      string `json:"qualityInput"`
	QualityOutput     string `json:"qualityOutput"`
	OutputFormat      string `json:"outputFormat"`
	SelectedIndexes   []int  `json:"selectedIndexes" binding:"required"`
	Channel           string `json:"channel"`
	Draft             bool   `json:"draft"`
}

type setResponse struct {
	ID              string     `json:"id"`
	SourceVideoID   *string    `json:"sourceVideoId"`
	BatchID         string     `json:"batchId"`
	Status          string     `json:"status"`
	ProgressCurrent int        `json:"progressCurrent"`
	ProgressTotal   int        `json:"progressTotal"`
	SelectedIndexes []int      `json:"selectedIndexes"`
	OutputFormat    string     `json:"outputFormat"`
	Channel         string     `json:"channel"`
	ScheduledAt     *time.Time `json:"scheduledAt"`
	PostedAt        *time.Time `json:"postedAt"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type imageResponse struct {
	ID           string    `json:"id"`
	SlideIndex   int       `json:"slideIndex"`
	ImageURL     *string   `json:"imageUrl"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toSetResponse(set models.GenerationSet) setResponse {
	return setResponse{
		ID:              set.ID,
		SourceVideoID:   set.SourceVideoID,
		BatchID:         set.BatchID,
		Status:          string(set.Status),
		ProgressCurrent: set.ProgressCurrent,
		ProgressTotal:   set.ProgressTotal,
		SelectedIndexes: set.SelectedIndexes,
		OutputFormat:    set.OutputFormat,
		Channel:         set.Channel,
		ScheduledAt:     set.ScheduledAt,
		PostedAt:        set.PostedAt,
		Notes:           set.Notes,
		CreatedAt:       set.CreatedAt,
		UpdatedAt:       set.UpdatedAt,
	}
}

// CreateSets accepts a generation request. Work starts asynchronously; the
// response only confirms the sets were queued.
func (h HandlerSet) CreateSets(c *gin.Context) {
	var req createSetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sets, err := h.genService.CreateSets(c.Request.Context(), generation.CreateSetsRequest{
		SourceVideoID:     req.SourceVideoID,
		Variants:          req.Variants,
		PromptFirstSlide:  req.PromptFirstSlide,
		PromptOtherSlides: req.PromptOtherSlides,
		QualityInput:      req.QualityInput,
		QualityOutput:     req.QualityOutput,
		OutputFormat:      req.OutputFormat,
		SelectedIndexes:   req.SelectedIndexes,
		Channel:           req.Channel,
		Draft:             req.Draft,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]setResponse, 0, len(sets))
	for _, set := range sets {
		items = append(items, toSetResponse(set))
	}
	c.JSON(http.StatusAccepted, gin.H{"sets": items})
}

func (h HandlerSet) ListSets(c *gin.Context) {
	limit, offset := pagination(c, 50)
	filter := repository.SetFilter{
		Status:  c.Query("status"),
		Channel: c.Query("channel"),
		BatchID: c.Query("batchId"),
		Limit:   limit,
		Offset:  offset,
	}

	sets, err := h.sets.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := h.sets.Count(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]setResponse, 0, len(sets))
	for _, set := range sets {
		items = append(items, toSetResponse(set))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h HandlerSet) GetSet(c *gin.Context) {
	set, err := h.sets.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "set_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	images, err := h.images.ListBySet(c.Request.Context(), set.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]imageResponse, 0, len(images))
	for _, image := range images {
		items = append(items, imageResponse{
			ID:           image.ID,
			SlideIndex:   image.SlideIndex,
			ImageURL:     image.ImageURL,
			Status:       string(image.Status),
			ErrorMessage: image.ErrorMessage,
			CreatedAt:    image.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"set": toSetResponse(set), "images": items})
}

type updateSetRequest struct {
	Channel     *string    `json:"channel"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	PostedAt    *time.Time `json:"postedAt"`
	Notes       *string    `json:"notes"`
	Status      *string    `json:"status"`
}

func (h HandlerSet) UpdateSet(c *gin.Context) {
	var req updateSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := repository.SetUpdate{
		Channel:     req.Channel,
		ScheduledAt: req.ScheduledAt,
		PostedAt:    req.PostedAt,
		Notes:       req.Notes,
	}
	if req.Status != nil {
		// Operators may only park a set as an editor draft; pipeline states
		// are owned by the queue.
		if *req.Status != string(models.SetStatusEditorDraft) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status_not_editable"})
			return
		}
		status := models.SetStatus(*req.Status)
		update.Status = &status
	}

	if err := h.sets.Update(c.Request.Context(), c.Param("id"), update); err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "set_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h HandlerSet) DeleteSet(c *gin.Context) {
	if err := h.sets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "set_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RetryImage re-runs one failed slide synchronously.
func (h HandlerSet) RetryImage(c *gin.Context) {
	err := h.processor.RetryImage(c.Request.Context(), c.Param("id"), c.Param("imageId"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "set_not_found"})
		case errors.Is(err, repository.ErrImageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	image, err := h.images.GetByID(c.Request.Context(), c.Param("imageId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": imageResponse{
		ID:           image.ID,
		SlideIndex:   image.SlideIndex,
		ImageURL:     image.ImageURL,
		Status:       string(image.Status),
		ErrorMessage: image.ErrorMessage,
		CreatedAt:    image.CreatedAt,
	}})
}
