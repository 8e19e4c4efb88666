package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/valargen/rateleads-api/handlers"
	"github.com/valargen/rateleads-api/services"
)

// SetupQuoteRoutes registers the instant-price-quote proxy.
func SetupQuoteRoutes(rg *gin.RouterGroup, uwm *services.UwmService, db *sql.DB) {
	quoteHandler := handlers.NewQuoteHandler(uwm, db)

	rg.POST("/quote", quoteHandler.GetQuote)
}

// SetupAnalysisRoutes registers the customer buydown analysis endpoints.
func SetupAnalysisRoutes(rg *gin.RouterGroup, uwm *services.UwmService, db *sql.DB, cache *services.AnalysisCache) {
	analysisHandler := handlers.NewAnalysisHandler(uwm, db, cache)

	rg.POST("/customers/:customer_key/analyze", analysisHandler.AnalyzeCustomer)
	rg.GET("/analysis/:cache_key/result/:customer_key", analysisHandler.GetCachedResult)
}
