package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

// stationDistance is a station listed by distance from the caller.
type stationDistance struct {
	models.Station
	DistanceKm float64 `json:"distanceKm"`
	Distance   string  `json:"distance"`
}

// handleListStations lists every station. With lat and lng query
// parameters the list is sorted nearest first and carries distances.
func (s *Server) handleListStations(c *gin.Context) {
	origin, ok, err := queryLocation(c)
	if err != nil {
		fail(c, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	stations, err := s.dir.List(ctx)
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"stations": stations})
		return
	}

	near := station.Nearest(stations, origin, 0)
	out := make([]stationDistance, len(near))
	for i, d := range near {
		out[i] = stationDistance{Station: d.Station, DistanceKm: d.Km, Distance: d.Label()}
	}
	c.JSON(http.StatusOK, gin.H{"stations": out})
}

func (s *Server) handleSearchStations(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, fmt.Errorf("q is required"), http.StatusBadRequest)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	stations, err := s.dir.Search(ctx, q)
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "stations": stations})
}

func (s *Server) handleGetStation(c *gin.Context) {
	id, err := stationID(c)
	if err != nil {
		fail(c, err, http.StatusBadRequest)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	st, err := s.dir.Get(ctx, id)
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSubmitReview(c *gin.Context) {
	id, err := stationID(c)
	if err != nil {
		fail(c, err, http.StatusBadRequest)
		return
	}
	var in station.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, fmt.Errorf("invalid review body: %w", err), http.StatusBadRequest)
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	review, err := s.dir.SubmitReview(ctx, id, in)
	if err != nil {
		fail(c, err, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func stationID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid station id %q", c.Param("id"))
	}
	return uint(id), nil
}

// queryLocation reads optional lat/lng query parameters. Both or neither
// must be given.
func queryLocation(c *gin.Context) (station.Coordinates, bool, error) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" && lngStr == "" {
		return station.Coordinates{}, false, nil
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	loc := station.Coordinates{Lat: lat, Lng: lng}
	if err1 != nil || err2 != nil || !loc.Valid() {
		return station.Coordinates{}, false, fmt.Errorf("invalid location %q,%q", latStr, lngStr)
	}
	return loc, true, nil
}
