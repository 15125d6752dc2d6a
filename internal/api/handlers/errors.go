package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
)

// toHTTPError maps domain errors onto Huma status errors. msg prefixes the
// message of unexpected failures.
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, alert.ErrInvalidTransition),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, engine.ErrJobLocked),
		errors.Is(err, engine.ErrDraining):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(msg + ": " + err.Error())
	default:
		return huma.Error500InternalServerError(msg + ": " + err.Error())
	}
}
