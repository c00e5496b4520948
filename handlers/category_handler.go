package handlers

import (
	"log"
	"net/http"

	"tahadi/models"
	"tahadi/services"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
	stockStore      services.StockStore
}

func NewCategoryHandler(categoryService *services.CategoryService, stockStore services.StockStore) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		stockStore:      stockStore,
	}
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.ListCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	grouped := make(map[string][]models.Category)
	for _, cat := range categories {
		grouped[cat.Group] = append(grouped[cat.Group], cat)
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories, "groups": grouped})
}

// GetRemainingRounds reports, per category, how many full boards the stock
// can still serve the caller. The setup screen grays out exhausted
// categories with it.
func (h *CategoryHandler) GetRemainingRounds(c *gin.Context) {
	username, exists := c.Get("username")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userKey := username.(string)

	categories, err := h.categoryService.ListCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rounds := make(map[string]int, len(categories))
	for _, cat := range categories {
		remaining, err := h.stockStore.RemainingRounds(c.Request.Context(), userKey, cat.Name)
		if err != nil {
			// An unreadable category counts as exhausted rather than failing
			// the whole listing.
			log.Printf("Remaining rounds lookup failed for %s: %v", cat.Name, err)
			remaining = 0
		}
		rounds[cat.Name] = remaining
	}

	c.JSON(http.StatusOK, gin.H{"remaining_rounds": rounds})
}
