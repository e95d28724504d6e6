package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/knockout-cup/repositories"
)

// Ошибки, которые видит вызывающая сторона (HTTP, хуки результатов).
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("tournament already exists")
	ErrNotFound     = errors.New("requested resource not found")
	ErrNotReady     = errors.New("match is not completed or is missing participants or scores")
	ErrInvalidState = errors.New("completed match has tied scores")
	ErrTransient    = errors.New("temporary storage failure, safe to retry")
)

// storeError translates repository failures into the service taxonomy. Any
// failure that is not a known domain condition is treated as transient.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrTournamentNotFound),
		errors.Is(err, repositories.ErrMatchTournamentInvalid):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	case errors.Is(err, repositories.ErrMatchesExist),
		errors.Is(err, repositories.ErrTournamentConflict):
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}
}
