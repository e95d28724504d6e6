package brackets

import (
	"context"
	"time"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
)

type GenerateBracketParams struct {
	TournamentID uuid.UUID
	Participants []string
	// Dates holds the five match days: R16 first half, R16 second half, QF, SF, FINAL.
	Dates []time.Time
	// Seed makes the draw reproducible. Nil draws a random seed.
	Seed *uint64
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.MatchSlot, error)

	GetName() string
}
