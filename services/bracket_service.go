package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Dosada05/knockout-cup/brackets"
	"github.com/Dosada05/knockout-cup/metrics"
	"github.com/Dosada05/knockout-cup/models"
	"github.com/Dosada05/knockout-cup/repositories"
	"github.com/Dosada05/knockout-cup/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultTournamentName = "Knockout Cup"

// BracketCache stores rendered brackets. GetBracket returns (nil, nil) on a miss.
type BracketCache interface {
	GetBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error)
	SetBracket(ctx context.Context, id uuid.UUID, bracket *models.Bracket) error
	InvalidateBracket(ctx context.Context, id uuid.UUID) error
}

// Notifier pushes bracket events to live viewers.
type Notifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

// Archiver keeps a snapshot of a bracket before it is deleted.
type Archiver interface {
	Archive(ctx context.Context, bracket *models.Bracket) (*storage.UploadResult, error)
}

type CreateTournamentInput struct {
	// ID is optional; retrying a create with the same ID yields ErrConflict.
	ID           *uuid.UUID
	Name         string
	Participants []string
	Dates        []time.Time
	Seed         *uint64
}

type ResultInput struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

type BracketService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id uuid.UUID) error
	ListTournaments(ctx context.Context) ([]models.Tournament, error)
	GetBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error)
	// OnMatchCompleted is invoked right after a slot's score is finalised.
	OnMatchCompleted(ctx context.Context, id uuid.UUID, tag models.RoundTag) (CascadeResult, error)
	SubmitResult(ctx context.Context, id uuid.UUID, tag models.RoundTag, input ResultInput) (CascadeResult, error)
	ClearResult(ctx context.Context, id uuid.UUID, tag models.RoundTag) (CascadeResult, error)
}

// BracketServiceDeps wires the service. Cache, Notifier, Archiver and
// Metrics are optional.
type BracketServiceDeps struct {
	Tournaments repositories.TournamentRepository
	Matches     repositories.MatchRepository
	Generator   brackets.BracketGenerator
	Policy      DownstreamPolicy
	// SingleActive rejects a new tournament while another one is active.
	SingleActive bool
	Cache        BracketCache
	Notifier     Notifier
	Archiver     Archiver
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

type bracketService struct {
	tournaments  repositories.TournamentRepository
	matches      repositories.MatchRepository
	generator    brackets.BracketGenerator
	cascade      *CascadeResolver
	locks        *tournamentLocks
	singleActive bool
	cache        BracketCache
	notifier     Notifier
	archiver     Archiver
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewBracketService(deps BracketServiceDeps) BracketService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	generator := deps.Generator
	if generator == nil {
		generator = brackets.NewSingleEliminationGenerator(nil)
	}
	engine := NewAdvancementEngine(deps.Matches, logger)
	return &bracketService{
		tournaments:  deps.Tournaments,
		matches:      deps.Matches,
		generator:    generator,
		cascade:      NewCascadeResolver(engine, deps.Matches, deps.Policy, logger),
		locks:        newTournamentLocks(),
		singleActive: deps.SingleActive,
		cache:        deps.Cache,
		notifier:     deps.Notifier,
		archiver:     deps.Archiver,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

func (s *bracketService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if len(input.Participants) != models.BracketSize {
		return nil, fmt.Errorf("%w: %d participants given, %d required", ErrInvalidInput, len(input.Participants), models.BracketSize)
	}
	if len(input.Dates) != brackets.DateCount {
		return nil, fmt.Errorf("%w: %d dates given, %d required", ErrInvalidInput, len(input.Dates), brackets.DateCount)
	}

	id := uuid.New()
	if input.ID != nil {
		if *input.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: tournament id must not be the nil uuid", ErrInvalidInput)
		}
		id = *input.ID
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = defaultTournamentName
	}

	// The draw is computed before anything is written.
	slots, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		TournamentID: id,
		Participants: input.Participants,
		Dates:        input.Dates,
		Seed:         input.Seed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if s.singleActive {
		// Every create contends for the same key while the policy is on.
		unlockActive := s.locks.Lock(uuid.Nil)
		defer unlockActive()

		active, err := s.tournaments.GetActive(ctx)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: tournament %s is still active", ErrConflict, active.ID)
		case !errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, storeError("check active tournament", err)
		}
	}

	tournament := &models.Tournament{ID: id, Name: name, Status: models.StatusActive}
	if err := s.tournaments.Create(ctx, tournament); err != nil {
		err = storeError("create tournament", err)
		s.metrics.Failure("create", errorKind(err))
		return nil, err
	}

	if err := s.matches.CreateMatches(ctx, id, slots); err != nil {
		// The slots were written all-or-nothing; drop the header row too.
		if delErr := s.tournaments.Delete(ctx, id); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove tournament after slot creation failed",
				slog.String("tournament_id", id.String()), slog.Any("error", delErr))
		}
		return nil, storeError("create match slots", err)
	}

	s.metrics.TournamentEvent("created")
	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", id.String()),
		slog.String("name", name),
		slog.Int("slots", len(slots)),
	)
	return tournament, nil
}

func (s *bracketService) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.tournaments.GetByID(ctx, id); err != nil {
		return storeError("get tournament", err)
	}
	if s.archiver != nil {
		s.archive(ctx, id)
	}

	if err := s.matches.DeleteAllMatches(ctx, id); err != nil {
		return storeError("delete match slots", err)
	}
	if err := s.tournaments.Delete(ctx, id); err != nil {
		return storeError("delete tournament", err)
	}

	s.invalidate(ctx, id)
	s.notify(id, brackets.MessageBracketDeleted, map[string]string{"tournament_id": id.String()})
	s.metrics.TournamentEvent("deleted")
	s.logger.InfoContext(ctx, "tournament deleted", slog.String("tournament_id", id.String()))
	return nil
}

// archive is best effort; a failed snapshot never blocks deletion.
func (s *bracketService) archive(ctx context.Context, id uuid.UUID) {
	bracket, err := s.loadBracket(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "bracket not archived", slog.String("tournament_id", id.String()), slog.Any("error", err))
		return
	}
	res, err := s.archiver.Archive(ctx, bracket)
	if err != nil {
		s.logger.WarnContext(ctx, "bracket archive failed, deleting anyway",
			slog.String("tournament_id", id.String()), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "bracket archived",
		slog.String("tournament_id", id.String()), slog.String("key", res.Key))
}

func (s *bracketService) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	tournaments, err := s.tournaments.List(ctx)
	if err != nil {
		return nil, storeError("list tournaments", err)
	}
	return tournaments, nil
}

func (s *bracketService) GetBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error) {
	if s.cache != nil {
		cached, err := s.cache.GetBracket(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "bracket cache read failed", slog.String("tournament_id", id.String()), slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	if s.cache == nil {
		return s.loadBracket(ctx, id)
	}

	// Writers invalidate under the same lock, so a bracket read before a
	// write can never be cached after it.
	unlock := s.locks.Lock(id)
	defer unlock()

	bracket, err := s.loadBracket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetBracket(ctx, id, bracket); err != nil {
		s.logger.WarnContext(ctx, "bracket cache write failed", slog.String("tournament_id", id.String()), slog.Any("error", err))
	}
	return bracket, nil
}

func (s *bracketService) loadBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error) {
	var (
		tournament *models.Tournament
		slots      []*models.MatchSlot
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.tournaments.GetByID(gCtx, id)
		if err != nil {
			return storeError("get tournament", err)
		}
		tournament = t
		return nil
	})
	g.Go(func() error {
		m, err := s.matches.ListMatches(gCtx, id)
		if err != nil {
			return storeError("list match slots", err)
		}
		slots = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ProjectBracket(tournament, slots)
}

// ProjectBracket groups slots by round. It fails with ErrInvalidState if the
// stored bracket does not have exactly the 15 expected slots.
func ProjectBracket(tournament *models.Tournament, slots []*models.MatchSlot) (*models.Bracket, error) {
	if len(slots) != models.SlotCount {
		return nil, fmt.Errorf("%w: tournament %s has %d match slots", ErrInvalidState, tournament.ID, len(slots))
	}
	ordered := slices.Clone(slots)
	slices.SortFunc(ordered, func(a, b *models.MatchSlot) int { return a.Tag.Order() - b.Tag.Order() })

	b := &models.Bracket{Tournament: tournament}
	for _, slot := range ordered {
		switch slot.Tag.Round {
		case models.RoundOf16:
			b.Round1 = append(b.Round1, slot)
		case models.QuarterFinal:
			b.Round2 = append(b.Round2, slot)
		case models.SemiFinal:
			b.Round3 = append(b.Round3, slot)
		case models.Final:
			b.Final = slot
		}
	}
	if b.Final == nil || len(b.Round1) != 8 || len(b.Round2) != 4 || len(b.Round3) != 2 {
		return nil, fmt.Errorf("%w: tournament %s has a malformed bracket", ErrInvalidState, tournament.ID)
	}
	if winner, err := Winner(b.Final); err == nil {
		b.Champion = &winner
	}
	return b, nil
}

func (s *bracketService) OnMatchCompleted(ctx context.Context, id uuid.UUID, tag models.RoundTag) (CascadeResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.resolveLocked(ctx, id, tag)
}

func (s *bracketService) SubmitResult(ctx context.Context, id uuid.UUID, tag models.RoundTag, input ResultInput) (CascadeResult, error) {
	if input.HomeScore < 0 || input.AwayScore < 0 {
		return CascadeResult{}, fmt.Errorf("%w: scores must not be negative", ErrInvalidInput)
	}
	if input.HomeScore == input.AwayScore {
		return CascadeResult{}, fmt.Errorf("%w: knockout results cannot be a draw (%d-%d)", ErrInvalidInput, input.HomeScore, input.AwayScore)
	}
	if !tag.Valid() {
		return CascadeResult{}, fmt.Errorf("%w: round tag %q", ErrNotFound, tag.String())
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	slot, err := s.matches.GetMatch(ctx, id, tag)
	if err != nil {
		return CascadeResult{}, storeError("get match "+tag.String(), err)
	}
	if slot.HomeTeam == nil || slot.AwayTeam == nil {
		return CascadeResult{}, fmt.Errorf("%w: %s is still waiting for its participants", ErrNotReady, tag)
	}

	home, away := input.HomeScore, input.AwayScore
	if err := s.matches.UpdateMatchResult(ctx, id, tag, &home, &away, true); err != nil {
		return CascadeResult{}, storeError("write result "+tag.String(), err)
	}
	s.invalidate(ctx, id)
	s.notify(id, brackets.MessageMatchUpdated, map[string]interface{}{
		"tag":        tag,
		"home_score": home,
		"away_score": away,
		"completed":  true,
	})

	return s.resolveLocked(ctx, id, tag)
}

func (s *bracketService) ClearResult(ctx context.Context, id uuid.UUID, tag models.RoundTag) (CascadeResult, error) {
	if !tag.Valid() {
		return CascadeResult{}, fmt.Errorf("%w: round tag %q", ErrNotFound, tag.String())
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.matches.UpdateMatchResult(ctx, id, tag, nil, nil, false); err != nil {
		return CascadeResult{}, storeError("clear result "+tag.String(), err)
	}
	defer s.invalidate(ctx, id)

	res, err := s.cascade.Clear(ctx, id, tag)
	if err != nil {
		s.metrics.Failure("clear", errorKind(err))
		return res, err
	}

	// A FINAL without a result or without both finalists has no champion.
	if tag == models.FinalTag || slices.Contains(res.Updated, models.FinalTag) || slices.Contains(res.Reset, models.FinalTag) {
		if err := s.tournaments.SetChampion(ctx, id, nil); err != nil {
			return res, storeError("unset champion", err)
		}
	}

	s.notify(id, brackets.MessageBracketUpdated, res)
	s.logger.InfoContext(ctx, "match result cleared",
		slog.String("tournament_id", id.String()),
		slog.String("tag", tag.String()),
		slog.Int("slots_updated", len(res.Updated)),
		slog.Int("slots_reset", len(res.Reset)),
	)
	return res, nil
}

// resolveLocked runs the cascade and records the champion. The caller holds
// the tournament lock.
func (s *bracketService) resolveLocked(ctx context.Context, id uuid.UUID, tag models.RoundTag) (CascadeResult, error) {
	res, err := s.cascade.Resolve(ctx, id, tag)

	// Shallower cascade writes survive a failure, so the cache is stale either way.
	if len(res.Updated) > 0 || len(res.Reset) > 0 {
		defer s.invalidate(ctx, id)
	}

	if err != nil {
		s.metrics.Failure("advance", errorKind(err))
		s.logger.WarnContext(ctx, "match completion not applied",
			slog.String("tournament_id", id.String()),
			slog.String("tag", tag.String()),
			slog.Any("error", err),
		)
		return res, err
	}

	if slices.Contains(res.Reset, models.FinalTag) {
		if err := s.tournaments.SetChampion(ctx, id, nil); err != nil {
			return res, storeError("unset champion", err)
		}
	}

	if res.Kind == AdvanceChampion {
		winner := res.Winner
		if err := s.tournaments.SetChampion(ctx, id, &winner); err != nil {
			return res, storeError("record champion", err)
		}
		s.invalidate(ctx, id)
		s.notify(id, brackets.MessageChampionDecided, map[string]string{"champion": winner})
		s.logger.InfoContext(ctx, "champion decided",
			slog.String("tournament_id", id.String()),
			slog.String("champion", winner),
		)
	} else if res.Kind == AdvanceAdvanced {
		s.notify(id, brackets.MessageBracketUpdated, res)
	}

	s.metrics.ObserveAdvance(string(res.Kind), res.Depth, len(res.Reset))
	return res, nil
}

func (s *bracketService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBracket(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "bracket cache invalidation failed", slog.String("tournament_id", id.String()), slog.Any("error", err))
	}
}

func (s *bracketService) notify(id uuid.UUID, msgType string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	room := brackets.RoomForTournament(id)
	s.notifier.BroadcastToRoom(room, brackets.WebSocketMessage{Type: msgType, Payload: payload, RoomID: room})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "other"
	}
}
