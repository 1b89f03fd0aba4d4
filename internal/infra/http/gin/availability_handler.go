package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/dto"
	availabilityapp "rentals/internal/app/handlers/availability"
	"rentals/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := availabilityapp.CheckAvailabilityQuery{
		ListingID:        c.Param("id"),
		Start:            start,
		End:              end,
		ExcludeBookingID: c.Query("exclude"),
	}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, *dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, "availability check", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Dates(c *gin.Context) {
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	query := availabilityapp.AvailableDatesQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.AvailableDatesQuery, *dto.AvailableDates](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, "available dates", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required (%s)", dto.DateLayout)
	}
	t, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", raw, dto.DateLayout)
	}
	return t, nil
}

var _ AvailabilityHTTP = AvailabilityHandler{}
