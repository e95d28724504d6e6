package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/Dosada05/knockout-cup/repositories"
	"github.com/Dosada05/knockout-cup/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ------------------------
// Fake Match Repo
// ------------------------

// FakeMatchRepository delegates to a MemoryStore unless a hook is set.
type FakeMatchRepository struct {
	Store *repositories.MemoryStore

	mu    sync.Mutex
	trace []string

	CreateMatchesFn          func(ctx context.Context, id uuid.UUID, slots []*models.MatchSlot) error
	GetMatchFn               func(ctx context.Context, id uuid.UUID, tag models.RoundTag) (*models.MatchSlot, error)
	ListMatchesFn            func(ctx context.Context, id uuid.UUID) ([]*models.MatchSlot, error)
	UpdateMatchParticipantFn func(ctx context.Context, id uuid.UUID, tag models.RoundTag, pos models.SlotPosition, expected, participant *string) error
	UpdateMatchResultFn      func(ctx context.Context, id uuid.UUID, tag models.RoundTag, home, away *int, completed bool) error
	DeleteAllMatchesFn       func(ctx context.Context, id uuid.UUID) error
}

var _ repositories.MatchRepository = (*FakeMatchRepository)(nil)

func (f *FakeMatchRepository) record(call string) {
	f.mu.Lock()
	f.trace = append(f.trace, call)
	f.mu.Unlock()
}

// Trace returns the sequence of write calls made to the fake.
func (f *FakeMatchRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeMatchRepository) ResetTrace() {
	f.mu.Lock()
	f.trace = nil
	f.mu.Unlock()
}

func (f *FakeMatchRepository) CreateMatches(ctx context.Context, id uuid.UUID, slots []*models.MatchSlot) error {
	f.record("CreateMatches")
	if f.CreateMatchesFn != nil {
		return f.CreateMatchesFn(ctx, id, slots)
	}
	return f.Store.CreateMatches(ctx, id, slots)
}

func (f *FakeMatchRepository) GetMatch(ctx context.Context, id uuid.UUID, tag models.RoundTag) (*models.MatchSlot, error) {
	if f.GetMatchFn != nil {
		return f.GetMatchFn(ctx, id, tag)
	}
	return f.Store.GetMatch(ctx, id, tag)
}

func (f *FakeMatchRepository) ListMatches(ctx context.Context, id uuid.UUID) ([]*models.MatchSlot, error) {
	if f.ListMatchesFn != nil {
		return f.ListMatchesFn(ctx, id)
	}
	return f.Store.ListMatches(ctx, id)
}

func (f *FakeMatchRepository) UpdateMatchParticipant(ctx context.Context, id uuid.UUID, tag models.RoundTag, pos models.SlotPosition, expected, participant *string) error {
	f.record(fmt.Sprintf("UpdateMatchParticipant %s %s", tag, pos))
	if f.UpdateMatchParticipantFn != nil {
		return f.UpdateMatchParticipantFn(ctx, id, tag, pos, expected, participant)
	}
	return f.Store.UpdateMatchParticipant(ctx, id, tag, pos, expected, participant)
}

func (f *FakeMatchRepository) UpdateMatchResult(ctx context.Context, id uuid.UUID, tag models.RoundTag, home, away *int, completed bool) error {
	f.record(fmt.Sprintf("UpdateMatchResult %s", tag))
	if f.UpdateMatchResultFn != nil {
		return f.UpdateMatchResultFn(ctx, id, tag, home, away, completed)
	}
	return f.Store.UpdateMatchResult(ctx, id, tag, home, away, completed)
}

func (f *FakeMatchRepository) DeleteAllMatches(ctx context.Context, id uuid.UUID) error {
	f.record("DeleteAllMatches")
	if f.DeleteAllMatchesFn != nil {
		return f.DeleteAllMatchesFn(ctx, id)
	}
	return f.Store.DeleteAllMatches(ctx, id)
}

// ------------------------
// Fake Tournament Repo
// ------------------------

type FakeTournamentRepository struct {
	Store *repositories.MemoryStore

	CreateFn      func(ctx context.Context, t *models.Tournament) error
	GetByIDFn     func(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	SetChampionFn func(ctx context.Context, id uuid.UUID, champion *string) error
	DeleteFn      func(ctx context.Context, id uuid.UUID) error
}

var _ repositories.TournamentRepository = (*FakeTournamentRepository)(nil)

func (f *FakeTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, t)
	}
	return f.Store.Create(ctx, t)
}

func (f *FakeTournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, id)
	}
	return f.Store.GetByID(ctx, id)
}

func (f *FakeTournamentRepository) GetActive(ctx context.Context) (*models.Tournament, error) {
	return f.Store.GetActive(ctx)
}

func (f *FakeTournamentRepository) List(ctx context.Context) ([]models.Tournament, error) {
	return f.Store.List(ctx)
}

func (f *FakeTournamentRepository) SetChampion(ctx context.Context, id uuid.UUID, champion *string) error {
	if f.SetChampionFn != nil {
		return f.SetChampionFn(ctx, id, champion)
	}
	return f.Store.SetChampion(ctx, id, champion)
}

func (f *FakeTournamentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, id)
	}
	return f.Store.Delete(ctx, id)
}

// ------------------------
// Fake collaborators
// ------------------------

type FakeBracketCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*models.Bracket
	Gets        int
	Invalidated int
}

func NewFakeBracketCache() *FakeBracketCache {
	return &FakeBracketCache{entries: make(map[uuid.UUID]*models.Bracket)}
}

func (c *FakeBracketCache) GetBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	return c.entries[id], nil
}

func (c *FakeBracketCache) SetBracket(ctx context.Context, id uuid.UUID, b *models.Bracket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = b
	return nil
}

func (c *FakeBracketCache) InvalidateBracket(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidated++
	delete(c.entries, id)
	return nil
}

func (c *FakeBracketCache) Has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

type FakeNotifier struct {
	mu       sync.Mutex
	Messages []interface{}
	Rooms    []string
}

func (n *FakeNotifier) BroadcastToRoom(roomID string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Rooms = append(n.Rooms, roomID)
	n.Messages = append(n.Messages, message)
}

type FakeArchiver struct {
	ArchiveFn func(ctx context.Context, b *models.Bracket) (*storage.UploadResult, error)
	Archived  []*models.Bracket
}

func (a *FakeArchiver) Archive(ctx context.Context, b *models.Bracket) (*storage.UploadResult, error) {
	a.Archived = append(a.Archived, b)
	if a.ArchiveFn != nil {
		return a.ArchiveFn(ctx, b)
	}
	return &storage.UploadResult{Key: "brackets/" + b.Tournament.ID.String() + "/1.json"}, nil
}

// ------------------------
// Helpers
// ------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func tag(round models.RoundName, index int) models.RoundTag {
	return models.MustRoundTag(round, index)
}

func participants() []string {
	out := make([]string, models.BracketSize)
	for i := range out {
		out[i] = fmt.Sprintf("T%d", i+1)
	}
	return out
}

func matchDates() []time.Time {
	start := time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC)
	return []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 4), start.AddDate(0, 0, 7), start.AddDate(0, 0, 14)}
}

// seedBracket stores a tournament whose R16-k is H<k> (home) vs A<k> (away).
func seedBracket(t *testing.T, store *repositories.MemoryStore) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, store.Create(ctx, &models.Tournament{ID: id, Name: "Cup", Status: models.StatusActive}))

	slots := make([]*models.MatchSlot, 0, models.SlotCount)
	for _, tg := range models.AllRoundTags() {
		slot := &models.MatchSlot{Tag: tg}
		if tg.Round == models.RoundOf16 {
			slot.HomeTeam = strPtr(fmt.Sprintf("H%d", tg.Index))
			slot.AwayTeam = strPtr(fmt.Sprintf("A%d", tg.Index))
		}
		slots = append(slots, slot)
	}
	require.NoError(t, store.CreateMatches(ctx, id, slots))
	return id
}

// score writes a final result straight to the store, as an external result
// workflow would.
func score(t *testing.T, store *repositories.MemoryStore, id uuid.UUID, tg models.RoundTag, home, away int) {
	t.Helper()
	require.NoError(t, store.UpdateMatchResult(context.Background(), id, tg, intPtr(home), intPtr(away), true))
}

func slotAt(t *testing.T, store *repositories.MemoryStore, id uuid.UUID, tg models.RoundTag) *models.MatchSlot {
	t.Helper()
	slot, err := store.GetMatch(context.Background(), id, tg)
	require.NoError(t, err)
	return slot
}

func teamOf(s *string) string {
	if s == nil {
		return "<none>"
	}
	return *s
}
