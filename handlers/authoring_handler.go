package handlers

import (
	"log"
	"net/http"
	"strings"

	"tahadi/services"

	"github.com/gin-gonic/gin"
)

type AuthoringHandler struct {
	authoringService *services.AuthoringService
	stockService     *services.StockService
	categoryService  *services.CategoryService
	hub              *services.ProgressHub
}

func NewAuthoringHandler(authoringService *services.AuthoringService, stockService *services.StockService, categoryService *services.CategoryService, hub *services.ProgressHub) *AuthoringHandler {
	return &AuthoringHandler{
		authoringService: authoringService,
		stockService:     stockService,
		categoryService:  categoryService,
		hub:              hub,
	}
}

type GenerateRequest struct {
	CategoryIDs []string `json:"category_ids" binding:"required,min=1,max=10"`
	Model       string   `json:"model"`
	JobID       string   `json:"job_id"`
}

// Generate runs the authoring pipeline for the requested categories and
// persists whatever real content came out of it into the stock. Placeholder
// sets from a degraded run are returned to the caller but never stored.
func (h *AuthoringHandler) Generate(c *gin.Context) {
	var req GenerateRequest
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

	onProgress := func(message string, step int) {
		h.hub.Broadcast(jobID, "authoring_progress", gin.H{"message": message, "step": step})
	}

	results := h.authoringService.GenerateBatch(c.Request.Context(), categories, req.Model, onProgress)
	h.hub.Finish(jobID)

	stored := 0
	degraded := false
	for _, cat := range categories {
		questions := results[cat.ID]
		if len(questions) == 0 {
			continue
		}
		if services.IsAuthoringFallback(questions[0]) {
			degraded = true
			continue
		}
		if err := h.stockService.InsertAuthored(c.Request.Context(), cat, questions); err != nil {
			log.Printf("Failed to persist authored questions for %s: %v", cat.Name, err)
			continue
		}
		stored += len(questions)
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":   jobID,
		"results":  results,
		"stored":   stored,
		"degraded": degraded,
	})
}
