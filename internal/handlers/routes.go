package handlers

import (
	"net/http"

	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/gin-gonic/gin"
)

// SetupRouter builds the engine with middleware and every route registered.
func SetupRouter(h *Handler, stream *PriceStream, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(NoCache())

	router.GET("/health", Health)
	if stream != nil {
		router.GET("/ws/prices", stream.Serve)
	}

	api := router.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
	}

	account := api.Group("")
	account.Use(h.RequireLogin())
	{
		account.GET("/portfolio", h.Portfolio)
		account.POST("/quote", h.Quote)
		account.POST("/buy", h.Buy)
		account.GET("/sell", h.SellableSymbols)
		account.POST("/sell", h.Sell)
		account.POST("/deposit", h.Deposit)
		account.GET("/history", h.History)
		account.POST("/password", h.ChangePassword)
		account.GET("/reconcile", h.Reconcile)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: http.StatusNotFound, Error: "not found"})
	})

	return router
}
