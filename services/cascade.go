package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/knockout-cup/brackets"
	"github.com/Dosada05/knockout-cup/models"
	"github.com/Dosada05/knockout-cup/repositories"
	"github.com/google/uuid"
)

// DownstreamPolicy decides what happens to an already completed slot whose
// participant is replaced or cleared by an upstream correction.
type DownstreamPolicy string

const (
	// PolicyRewrite only rewrites the participant; the slot keeps its scores
	// and its own winner is re-derived from them.
	PolicyRewrite DownstreamPolicy = "rewrite"
	// PolicyReset wipes the slot's result and withdraws its winner from the
	// next round, recursively.
	PolicyReset DownstreamPolicy = "reset"
)

func ParseDownstreamPolicy(s string) (DownstreamPolicy, error) {
	switch DownstreamPolicy(s) {
	case PolicyRewrite, PolicyReset:
		return DownstreamPolicy(s), nil
	case "":
		return PolicyRewrite, nil
	default:
		return "", fmt.Errorf("%w: unknown downstream policy %q", ErrInvalidInput, s)
	}
}

// CascadeResult is the outcome of a Resolve call. The embedded result is the
// deepest advancement that changed something.
type CascadeResult struct {
	AdvanceResult
	// Updated lists destination slots whose participants were written.
	Updated []models.RoundTag `json:"updated,omitempty"`
	// Reset lists completed slots whose result was wiped (PolicyReset only).
	Reset []models.RoundTag `json:"reset,omitempty"`
	Depth int               `json:"depth"`
}

type CascadeResolver struct {
	engine  *AdvancementEngine
	matches repositories.MatchRepository
	policy  DownstreamPolicy
	logger  *slog.Logger
}

func NewCascadeResolver(engine *AdvancementEngine, matches repositories.MatchRepository, policy DownstreamPolicy, logger *slog.Logger) *CascadeResolver {
	if policy == "" {
		policy = PolicyRewrite
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CascadeResolver{engine: engine, matches: matches, policy: policy, logger: logger}
}

func (c *CascadeResolver) Policy() DownstreamPolicy {
	return c.policy
}

// Resolve advances tag and keeps advancing through destination slots that
// are already completed. An unchanged step still walks into a completed
// destination, so calling Resolve again for the same tag after a failure
// repairs what the failed call left behind. An error at any depth stops the
// cascade; writes made at shallower depths stay in place.
func (c *CascadeResolver) Resolve(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (CascadeResult, error) {
	var out CascadeResult
	err := c.resolve(ctx, tournamentID, tag, false, &out)
	return out, err
}

// resolve advances tag. walked reports that tag was reached through an
// unchanged step, so nothing upstream of it was written by this call.
func (c *CascadeResolver) resolve(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, walked bool, out *CascadeResult) error {
	res, err := c.engine.Advance(ctx, tournamentID, tag)
	if walked && errors.Is(err, ErrNotReady) {
		// A withdrawn participant left the slot without a winner.
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case out.Depth == 0, res.Kind == AdvanceAdvanced:
		out.AdvanceResult = res
		out.Depth++
	case res.Kind == AdvanceChampion && !walked:
		out.AdvanceResult = res
		out.Depth++
	}

	if res.Next == nil {
		return nil
	}
	if res.Kind == AdvanceAdvanced {
		out.Updated = append(out.Updated, *res.Next)
	}

	dest, err := c.matches.GetMatch(ctx, tournamentID, *res.Next)
	if err != nil {
		return storeError("get match "+res.Next.String(), err)
	}
	if !dest.Completed {
		return nil
	}

	if res.Kind == AdvanceUnchanged {
		return c.resolve(ctx, tournamentID, dest.Tag, true, out)
	}
	if c.policy == PolicyReset {
		return c.reset(ctx, tournamentID, dest.Tag, out)
	}

	c.logger.InfoContext(ctx, "cascading into completed slot",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("tag", dest.Tag.String()),
	)
	return c.resolve(ctx, tournamentID, dest.Tag, false, out)
}

// Clear withdraws tag's winner from its destination position. Under
// PolicyRewrite it does not touch anything further downstream.
func (c *CascadeResolver) Clear(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (CascadeResult, error) {
	out := CascadeResult{AdvanceResult: AdvanceResult{Kind: AdvanceUnchanged, From: tag}}
	err := c.clear(ctx, tournamentID, tag, &out)
	return out, err
}

func (c *CascadeResolver) clear(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, out *CascadeResult) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: round tag %q", ErrNotFound, tag.String())
	}
	next, pos, ok := brackets.PositionOf(tag)
	if !ok {
		return nil
	}

	dest, err := c.matches.GetMatch(ctx, tournamentID, next)
	if err != nil {
		return storeError("get match "+next.String(), err)
	}
	current := dest.Participant(pos)
	if current == nil {
		return nil
	}

	if err := c.matches.UpdateMatchParticipant(ctx, tournamentID, next, pos, current, nil); err != nil {
		return storeError(fmt.Sprintf("clear %s %s", next, pos), err)
	}
	out.Updated = append(out.Updated, next)

	c.logger.InfoContext(ctx, "winner withdrawn",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("from", tag.String()),
		slog.String("slot", next.String()),
		slog.String("position", string(pos)),
		slog.String("team", *current),
	)

	if c.policy == PolicyReset && dest.Completed {
		return c.reset(ctx, tournamentID, next, out)
	}
	return nil
}

// reset wipes a completed slot's result and withdraws its winner downstream.
func (c *CascadeResolver) reset(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, out *CascadeResult) error {
	if err := c.matches.UpdateMatchResult(ctx, tournamentID, tag, nil, nil, false); err != nil {
		return storeError("reset result "+tag.String(), err)
	}
	out.Reset = append(out.Reset, tag)

	c.logger.WarnContext(ctx, "downstream result reset after upstream correction",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("tag", tag.String()),
	)
	return c.clear(ctx, tournamentID, tag, out)
}
