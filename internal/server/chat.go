package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/station"
)

type chatRequest struct {
	Session string   `json:"session"`
	Text    string   `json:"text"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type chatResponse struct {
	Session string `json:"session"`
	chat.Reply
}

type turnView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleChat answers one web widget turn. A request without a session gets
// a new one, returned in the response.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("invalid chat body: %w", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		fail(c, fmt.Errorf("text is required"), http.StatusBadRequest)
		return
	}
	if req.Session == "" {
		req.Session = "web-" + uuid.NewString()
	}

	turn := chat.Turn{SessionKey: req.Session, Text: req.Text}
	if req.Lat != nil && req.Lng != nil {
		loc := station.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
		if !loc.Valid() {
			fail(c, fmt.Errorf("invalid location %v,%v", *req.Lat, *req.Lng), http.StatusBadRequest)
			return
		}
		turn.Location = &loc
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	reply, err := s.bot.Handle(ctx, turn)
	if err != nil {
		fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Session: req.Session, Reply: reply})
}

func (s *Server) handleHistory(c *gin.Context) {
	key := c.Param("session")
	ctx, cancel := s.requestContext(c)
	defer cancel()
	turns, err := s.bot.History(ctx, key)
	if err != nil {
		fail(c, err, http.StatusInternalServerError)
		return
	}
	out := make([]turnView, len(turns))
	for i, t := range turns {
		out[i] = turnView{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt}
	}
	c.JSON(http.StatusOK, gin.H{"session": key, "turns": out})
}

// handleClearChat forgets a conversation and closes its booking form.
func (s *Server) handleClearChat(c *gin.Context) {
	key := c.Param("session")
	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.bot.Clear(ctx, key); err != nil {
		fail(c, err, http.StatusInternalServerError)
		return
	}
	s.forms.Close(key)
	c.JSON(http.StatusOK, gin.H{"session": key, "cleared": true})
}
