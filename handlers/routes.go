package handlers

import (
	"net/http"

	"portfolio-tracker/auth"
	"portfolio-tracker/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups every handler the router serves.
type Handlers struct {
	Auth      *AuthHandler
	Portfolio *PortfolioHandler
	Market    *MarketHandler
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// RegisterRoutes mounts public and authenticated routes on router.
func RegisterRoutes(router *gin.Engine, h Handlers, tokens *auth.TokenManager) {
	router.GET("/health", Health)

	// Public routes
	router.POST("/signup", h.Auth.Signup)
	router.POST("/login", h.Auth.Login)
	router.POST("/refresh", h.Auth.Refresh)
	router.POST("/logout", h.Auth.Logout)

	// Protected routes
	authed := router.Group("/")
	authed.Use(middleware.JWTAuth(tokens))
	{
		authed.GET("/me", h.Auth.Me)
		authed.GET("/portfolio", h.Portfolio.GetPortfolio)
		authed.POST("/stocks", h.Portfolio.AddStock)
		authed.POST("/stocks/sell", h.Portfolio.SellStock)
		authed.GET("/sales", h.Portfolio.ListSales)
		authed.GET("/prices/:symbol", h.Market.GetStockPrice)
		authed.GET("/symbols", h.Market.SearchSymbols)
	}
}
