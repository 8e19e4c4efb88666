package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/valargen/rateleads-api/models"
	"github.com/valargen/rateleads-api/services"
	"github.com/valargen/rateleads-api/utils"
)

type QuoteHandler struct {
	Uwm *services.UwmService
	Log *services.QuoteLogService
}

func NewQuoteHandler(uwm *services.UwmService, db *sql.DB) *QuoteHandler {
	return &QuoteHandler{
		Uwm: uwm,
		Log: services.NewQuoteLogService(db),
	}
}

// GetQuote proxies a borrower scenario to the pricing provider and returns
// the normalized quote summary. An empty matches list is a valid answer; only
// a failed provider call is an error.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	var input models.QuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation Error", "details": err.Error()})
		return
	}

	if input.LoanAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation Error",
			"details": gin.H{"loanAmount": "must be greater than zero"},
		})
		return
	}

	targetAmount := services.DefaultTargetAmount
	if raw := c.Query("target_amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Validation Error",
				"details": gin.H{"target_amount": "must be a number"},
			})
			return
		}
		targetAmount = v
	}

	utils.LogQuoteAction("instant price quote", input.BorrowerName, input.LoanAmount)

	// Fire and forget; a logging failure never fails the request.
	h.Log.LogQuoteRequest("", input.Fields())

	payload := services.BuildQuotePayload(input.Fields())

	raw, err := h.Uwm.FetchQuote(c.Request.Context(), payload)
	if err != nil {
		utils.SafeError("price quote failed for %s: %v", input.BorrowerName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price quote", "details": err.Error()})
		return
	}

	summary := services.BuildQuoteSummary(raw, targetAmount)
	c.JSON(http.StatusOK, summary)
}
