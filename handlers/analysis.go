package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valargen/rateleads-api/models"
	"github.com/valargen/rateleads-api/services"
	"github.com/valargen/rateleads-api/utils"
)

type AnalysisHandler struct {
	Service *services.AnalysisService
	Log     *services.QuoteLogService
}

func NewAnalysisHandler(uwm *services.UwmService, db *sql.DB, cache *services.AnalysisCache) *AnalysisHandler {
	return &AnalysisHandler{
		Service: services.NewAnalysisService(uwm, cache),
		Log:     services.NewQuoteLogService(db),
	}
}

// AnalyzeCustomer runs the full buydown scenario analysis for one customer.
func (h *AnalysisHandler) AnalyzeCustomer(c *gin.Context) {
	customerKey := c.Param("customer_key")
	if customerKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Customer key required"})
		return
	}

	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation Error", "details": err.Error()})
		return
	}

	h.Log.LogQuoteRequest(customerKey, req.Payload)

	result, err := h.Service.AnalyzeCustomer(c.Request.Context(), customerKey, req)
	if err != nil {
		utils.SafeError("analysis failed for customer %s: %v", customerKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCachedResult returns a previously computed analysis by cache key.
func (h *AnalysisHandler) GetCachedResult(c *gin.Context) {
	cacheKey := c.Param("cache_key")
	customerKey := c.Param("customer_key")

	result, err := h.Service.GetCachedResult(c.Request.Context(), cacheKey, customerKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis", "details": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found or expired"})
		return
	}

	c.JSON(http.StatusOK, result)
}
