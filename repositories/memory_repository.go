package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
)

// MemoryStore keeps tournaments and their slots in process memory. It
// implements both MatchRepository and TournamentRepository and is used for
// STORAGE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	tournaments map[uuid.UUID]*models.Tournament
	matches     map[uuid.UUID]map[models.RoundTag]*models.MatchSlot
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments: make(map[uuid.UUID]*models.Tournament),
		matches:     make(map[uuid.UUID]map[models.RoundTag]*models.MatchSlot),
		now:         time.Now,
	}
}

var (
	_ MatchRepository      = (*MemoryStore)(nil)
	_ TournamentRepository = (*MemoryStore)(nil)
)

// --- MatchRepository ---

func (s *MemoryStore) CreateMatches(ctx context.Context, tournamentID uuid.UUID, slots []*models.MatchSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tournaments[tournamentID]; !ok {
		return ErrMatchTournamentInvalid
	}
	if len(s.matches[tournamentID]) > 0 {
		return ErrMatchesExist
	}

	stored := make(map[models.RoundTag]*models.MatchSlot, len(slots))
	now := s.now()
	for _, slot := range slots {
		if _, dup := stored[slot.Tag]; dup {
			return ErrMatchesExist
		}
		c := slot.Clone()
		c.TournamentID = tournamentID
		c.UpdatedAt = now
		slot.UpdatedAt = now
		stored[slot.Tag] = c
	}
	s.matches[tournamentID] = stored
	return nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag) (*models.MatchSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.matches[tournamentID][tag]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return slot.Clone(), nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]*models.MatchSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]*models.MatchSlot, 0, len(s.matches[tournamentID]))
	for _, slot := range s.matches[tournamentID] {
		slots = append(slots, slot.Clone())
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Tag.Order() < slots[j].Tag.Order()
	})
	return slots, nil
}

func (s *MemoryStore) UpdateMatchParticipant(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, pos models.SlotPosition, expected, participant *string) error {
	if _, err := positionColumn(pos); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.matches[tournamentID][tag]
	if !ok {
		return ErrMatchNotFound
	}
	if !models.SameTeam(slot.Participant(pos), expected) {
		return ErrMatchParticipantChanged
	}
	var v *string
	if participant != nil {
		p := *participant
		v = &p
	}
	slot.SetParticipant(pos, v)
	slot.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) UpdateMatchResult(ctx context.Context, tournamentID uuid.UUID, tag models.RoundTag, homeScore, awayScore *int, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.matches[tournamentID][tag]
	if !ok {
		return ErrMatchNotFound
	}
	slot.HomeScore = copyInt(homeScore)
	slot.AwayScore = copyInt(awayScore)
	slot.Completed = completed
	slot.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteAllMatches(ctx context.Context, tournamentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.matches, tournamentID)
	return nil
}

// --- TournamentRepository ---

func (s *MemoryStore) Create(ctx context.Context, tournament *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tournaments[tournament.ID]; exists {
		return ErrTournamentConflict
	}
	tournament.CreatedAt = s.now()
	c := *tournament
	s.tournaments[tournament.ID] = &c
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (s *MemoryStore) GetActive(ctx context.Context) (*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Tournament
	for _, t := range s.tournaments {
		if t.Status != models.StatusActive {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrTournamentNotFound
	}
	c := *latest
	return &c, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tournaments := make([]models.Tournament, 0, len(s.tournaments))
	for _, t := range s.tournaments {
		tournaments = append(tournaments, *t)
	}
	sort.Slice(tournaments, func(i, j int) bool {
		return tournaments[i].CreatedAt.After(tournaments[j].CreatedAt)
	})
	return tournaments, nil
}

func (s *MemoryStore) SetChampion(ctx context.Context, id uuid.UUID, champion *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	if champion == nil {
		t.ChampionTeam = nil
		t.Status = models.StatusActive
		return nil
	}
	c := *champion
	t.ChampionTeam = &c
	t.Status = models.StatusCompleted
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tournaments[id]; !ok {
		return ErrTournamentNotFound
	}
	delete(s.tournaments, id)
	delete(s.matches, id)
	return nil
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
