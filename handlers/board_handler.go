package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"tahadi/models"
	"tahadi/services"

	"github.com/gin-gonic/gin"
)

type BoardHandler struct {
	supplyService   *services.SupplyService
	categoryService *services.CategoryService
	hub             *services.ProgressHub
}

func NewBoardHandler(supplyService *services.SupplyService, categoryService *services.CategoryService, hub *services.ProgressHub) *BoardHandler {
	return &BoardHandler{
		supplyService:   supplyService,
		categoryService: categoryService,
		hub:             hub,
	}
}

type BuildBoardRequest struct {
	CategoryIDs []string `json:"category_ids" binding:"required,min=1,max=10"`
	// JobID lets the client subscribe to progress events before the build
	// starts; one is generated when absent.
	JobID string `json:"job_id"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

func (h *BoardHandler) BuildBoard(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userKey := username.(string)

	var req BuildBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	categories, err := h.categoryService.GetByIDs(req.CategoryIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = generateJobID()
	}

	onProgress := func(percent int) {
		h.hub.Broadcast(jobID, "supply_progress", gin.H{"percent": percent})
	}

	result, err := h.supplyService.BuildBoard(c.Request.Context(), userKey, categories, onProgress)
	if err != nil {
		if errors.Is(err, services.ErrNoIdentity) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.supplyService.StoreBoard(c.Request.Context(), jobID, result); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store board session"})
		return
	}
	h.hub.Finish(jobID)

	c.JSON(http.StatusOK, gin.H{
		"job_id":    jobID,
		"questions": result.Questions,
		"errors":    result.Errors,
	})
}

func (h *BoardHandler) GetBoard(c *gin.Context) {
	jobID := c.Param("jobID")

	board, err := h.supplyService.GetBoard(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, services.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *BoardHandler) AnswerQuestion(c *gin.Context) {
	jobID := c.Param("jobID")

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.QuestionStatus(req.Status)
	switch status {
	case models.StatusOpened, models.StatusAnsweredCorrect, models.StatusAnsweredIncorrect:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	question, err := h.supplyService.TransitionQuestion(c.Request.Context(), jobID, req.QuestionID, status)
	if err != nil {
		if errors.Is(err, services.ErrBoardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Board not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.hub.Broadcast(jobID, "question_update", question)

	c.JSON(http.StatusOK, question)
}

func generateJobID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
