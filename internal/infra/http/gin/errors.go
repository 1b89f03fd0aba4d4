package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/middleware"
	"rentals/internal/app/policies"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

// retryAfterSeconds is advertised on lock contention.
const retryAfterSeconds = "1"

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainbooking.ErrInvalidRange),
		errors.Is(err, middleware.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, policies.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domainbooking.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainlistings.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrDatesUnavailable),
		errors.Is(err, domainbooking.ErrCannotModifyDeleted),
		errors.Is(err, middleware.ErrIdempotencyKeyReused),
		errors.Is(err, uow.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domainbooking.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, uow.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, uow.ErrUnitOfWorkMissing),
		errors.Is(err, commands.ErrHandlerNotFound),
		errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusLocked {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, op+" failed", "status", status, "error", err)
	}
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
