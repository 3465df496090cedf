package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/evbot/internal/booking"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/station"
)

// registerRoutes sets up all API routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", handleHealth)

	api := router.Group("/api")
	if s.limiter != nil {
		api.Use(s.limiter.middleware())
	}

	api.GET("/stations", s.handleListStations)
	api.GET("/stations/search", s.handleSearchStations)
	api.GET("/stations/:id", s.handleGetStation)
	api.POST("/stations/:id/reviews", s.handleSubmitReview)

	api.POST("/chat", s.handleChat)
	api.GET("/chat/:session/history", s.handleHistory)
	api.DELETE("/chat/:session", s.handleClearChat)

	api.POST("/booking/:session/open", s.handleOpenBooking)
	api.GET("/booking/:session/slots", s.handleSlots)
	api.POST("/booking/:session/submit", s.handleSubmitBooking)

	// Target of the booking links sent in chat replies.
	router.GET(chat.DefaultBookingPath, s.handleBookingLink)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestContext bounds a handler's work by the server timeout.
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// fail writes err as a JSON error. Known sentinel errors pick their own
// status; anything else gets fallback.
func fail(c *gin.Context, err error, fallback int) {
	c.AbortWithStatusJSON(errorStatus(err, fallback), gin.H{"error": err.Error()})
}

func errorStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, station.ErrNotFound), errors.Is(err, chat.ErrNoForm):
		return http.StatusNotFound
	case errors.Is(err, station.ErrInvalidReview), errors.Is(err, booking.ErrIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotReady), errors.Is(err, booking.ErrSlotTaken):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return fallback
}
