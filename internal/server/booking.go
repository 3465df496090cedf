package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/evbot/internal/booking"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/station"
)

const dateLayout = "2006-01-02"

type bookingView struct {
	booking.State
	Durations []booking.DurationOption `json:"durations"`
	// Reply is the assistant's report when a pending chat booking was
	// applied to a newly opened form.
	Reply *chat.Reply `json:"reply,omitempty"`
}

type slotsView struct {
	booking.State
	Slots []station.Slot `json:"slots"`
}

type submitRequest struct {
	Station  string `json:"station"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Vehicle  string `json:"vehicle"`
}

type submitResponse struct {
	Reference string `json:"reference"`
	booking.State
}

// handleOpenBooking opens the session's booking form and applies any booking
// the assistant left pending for it.
func (s *Server) handleOpenBooking(c *gin.Context) {
	view, err := s.openForm(c, c.Param("session"))
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleBookingLink serves the link sent by chat platforms.
func (s *Server) handleBookingLink(c *gin.Context) {
	key := c.Query("session")
	if key == "" {
		fail(c, fmt.Errorf("session is required"), http.StatusBadRequest)
		return
	}
	view, err := s.openForm(c, key)
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) openForm(c *gin.Context, key string) (bookingView, error) {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	form, _, err := s.forms.Open(ctx, key)
	if err != nil {
		return bookingView{}, err
	}
	view := bookingView{Durations: booking.DurationOptions}
	if reply, ok := s.bot.Resume(ctx, key, form); ok {
		view.Reply = &reply
	}
	view.State = form.State()
	return view, nil
}

// handleSlots returns the slot grid. Optional station and date query
// parameters change the selection first.
func (s *Server) handleSlots(c *gin.Context) {
	form, ok := s.forms.Get(c.Param("session"))
	if !ok {
		fail(c, chat.ErrNoForm, http.StatusNotFound)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	req := submitRequest{Station: c.Query("station"), Date: c.Query("date")}
	if err := s.applySelection(ctx, form, req); err != nil {
		fail(c, err, http.StatusBadRequest)
		return
	}
	slots, err := form.ListAvailableSlots(ctx)
	if err != nil {
		fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, slotsView{State: form.State(), Slots: slots})
}

// handleSubmitBooking applies the posted fields and books the form.
func (s *Server) handleSubmitBooking(c *gin.Context) {
	form, ok := s.forms.Get(c.Param("session"))
	if !ok {
		fail(c, chat.ErrNoForm, http.StatusNotFound)
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("invalid booking body: %w", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.applySelection(ctx, form, req); err != nil {
		fail(c, err, http.StatusBadRequest)
		return
	}
	if req.Duration > 0 {
		if _, err := form.SetDuration(ctx, req.Duration); err != nil {
			fail(c, err, http.StatusBadRequest)
			return
		}
	}
	if req.Vehicle != "" {
		if err := form.SetVehicle(ctx, req.Vehicle); err != nil {
			fail(c, err, http.StatusBadRequest)
			return
		}
	}
	if req.Time != "" {
		// The grid must be loaded before a time can be picked.
		if _, err := form.ListAvailableSlots(ctx); err != nil {
			fail(c, err, http.StatusBadRequest)
			return
		}
		if err := form.SelectSlot(ctx, req.Time); err != nil {
			fail(c, err, http.StatusConflict)
			return
		}
	}

	ref, err := form.Submit(ctx)
	if err != nil {
		fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, submitResponse{Reference: ref, State: form.State()})
}

// applySelection sets the station and date when given.
func (s *Server) applySelection(ctx context.Context, form *booking.Form, req submitRequest) error {
	if req.Station != "" {
		if _, err := form.SelectStation(ctx, req.Station); err != nil {
			return err
		}
	}
	if req.Date != "" {
		day, err := time.ParseInLocation(dateLayout, req.Date, s.now().Location())
		if err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date)
		}
		if err := form.SetDate(ctx, day); err != nil {
			return err
		}
	}
	return nil
}
