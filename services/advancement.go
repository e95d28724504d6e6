package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/knockout-cup/brackets"
	"github.com/Dosada05/knockout-cup/models"
	"github.com/Dosada05/knockout-cup/repositories"
	"github.com/google/uuid"
)

type AdvanceKind string

const (
	AdvanceUnchanged AdvanceKind = "unchanged"
	AdvanceAdvanced  AdvanceKind = "advanced"
	AdvanceChampion  AdvanceKind = "champion"
)

// AdvanceResult describes what a single advancement did.
type AdvanceResult struct {
	Kind   AdvanceKind      `json:"kind"`
	From   models.RoundTag  `json:"from"`
	Next   *models.RoundTag `json:"next,omitempty"`
	Winner string           `json:"winner"`
	// Replaced is the participant that occupied the destination position
	// before an Advanced write, nil if it was empty.
	Replaced *string `json:"replaced,omitempty"`
}

// AdvancementEngine moves the winner of a completed slot into its
// destination slot. Writes are compare-and-set against the value it read.
type AdvancementEngine struct {
	matches repositories.MatchRepository
	logger  *slog.Logger
}

func NewAdvancementEngine(matches repositories.MatchRepository, logger *slog.Logger) *AdvancementEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvancementEngine{matches: matches, logger: logger}
}

// Winner returns the participant with the strictly higher score.
func Winner(slot *models.MatchSlot) (string, error) {
	if !slot.Ready() {
		return "", fmt.Errorf("%w: %s", ErrNotReady, slot.Tag)
	}
	switch {
	case *slot.HomeScore > *slot.AwayScore:
		return *slot.HomeTeam, nil
	case *slot.AwayScore > *slot.HomeScore:
		return *slot.AwayTeam, nil
	default:
		return "", fmt.Errorf("%w: %s finished %d-%d", ErrInvalidState, slot.Tag, *slot.HomeScore, *slot.AwayScore)
	}
}

func (e *AdvancementEngine) Advance(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (AdvanceResult, error) {
	if !tag.Valid() {
		return AdvanceResult{}, fmt.Errorf("%w: round tag %q", ErrNotFound, tag.String())
	}

	slot, err := e.matches.GetMatch(ctx, tournamentID, tag)
	if err != nil {
		return AdvanceResult{}, storeError("get match "+tag.String(), err)
	}

	winner, err := Winner(slot)
	if err != nil {
		return AdvanceResult{}, err
	}

	next, pos, ok := brackets.PositionOf(tag)
	if !ok {
		return AdvanceResult{Kind: AdvanceChampion, From: tag, Winner: winner}, nil
	}

	dest, err := e.matches.GetMatch(ctx, tournamentID, next)
	if err != nil {
		return AdvanceResult{}, storeError("get match "+next.String(), err)
	}

	current := dest.Participant(pos)
	if models.SameTeam(current, &winner) {
		return AdvanceResult{Kind: AdvanceUnchanged, From: tag, Next: &next, Winner: winner}, nil
	}

	if err := e.matches.UpdateMatchParticipant(ctx, tournamentID, next, pos, current, &winner); err != nil {
		return AdvanceResult{}, storeError(fmt.Sprintf("write %s %s", next, pos), err)
	}

	e.logger.InfoContext(ctx, "winner advanced",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("from", tag.String()),
		slog.String("to", next.String()),
		slog.String("position", string(pos)),
		slog.String("winner", winner),
	)

	return AdvanceResult{Kind: AdvanceAdvanced, From: tag, Next: &next, Winner: winner, Replaced: current}, nil
}
