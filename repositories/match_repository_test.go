package repositories

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/knockout-cup/db"
	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// pgDB is shared by the Postgres adapter tests; nil when no container runs.
var pgDB *sql.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("knockout"),
		postgres.WithUsername("knockout"),
		postgres.WithPassword("knockout"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("postgres container unavailable, adapter tests will skip: %v", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer func() {
			if err := container.Terminate(ctx); err != nil {
				log.Printf("failed to terminate postgres container: %v", err)
			}
		}()

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Printf("failed to get postgres connection string: %v", err)
			return 1
		}
		conn, err := db.Connect(dsn, 10*time.Second)
		if err != nil {
			log.Printf("failed to connect to postgres container: %v", err)
			return 1
		}
		defer conn.Close()
		if err := db.Migrate(ctx, conn); err != nil {
			log.Printf("failed to migrate postgres container: %v", err)
			return 1
		}

		pgDB = conn
		return m.Run()
	}()
	os.Exit(code)
}

func postgresRepos(t *testing.T) (MatchRepository, TournamentRepository) {
	t.Helper()
	if pgDB == nil {
		t.Skip("postgres container not running")
	}
	return NewPostgresMatchRepository(pgDB), NewPostgresTournamentRepository(pgDB)
}

func pgSlots() []*models.MatchSlot {
	kickoff := time.Date(2026, 6, 6, 12, 0, 0, 0, time.UTC)
	slots := make([]*models.MatchSlot, 0, models.SlotCount)
	for _, tag := range models.AllRoundTags() {
		slot := &models.MatchSlot{Tag: tag, Date: kickoff, Location: "Central Stadium"}
		if tag.Round == models.RoundOf16 {
			slot.HomeTeam = strPtr("H" + tag.String())
			slot.AwayTeam = strPtr("A" + tag.String())
		}
		slots = append(slots, slot)
	}
	return slots
}

func seedPostgres(t *testing.T, matches MatchRepository, tournaments TournamentRepository) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, tournaments.Create(ctx, &models.Tournament{ID: id, Name: "Cup", Status: models.StatusActive}))
	require.NoError(t, matches.CreateMatches(ctx, id, pgSlots()))
	return id
}

func TestPostgresMatchRepository_CreateMatches(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)

	err := matches.CreateMatches(ctx, uuid.New(), pgSlots())
	assert.ErrorIs(t, err, ErrMatchTournamentInvalid)

	id := seedPostgres(t, matches, tournaments)
	slots, err := matches.ListMatches(ctx, id)
	require.NoError(t, err)
	require.Len(t, slots, models.SlotCount)
	for i, slot := range slots {
		assert.Equal(t, i, slot.Tag.Order())
		assert.Equal(t, id, slot.TournamentID)
		assert.Equal(t, "Central Stadium", slot.Location)
		assert.False(t, slot.UpdatedAt.IsZero())
	}
	assert.Equal(t, "HR16-1", *slots[0].HomeTeam)
	assert.Nil(t, slots[models.SlotCount-1].HomeTeam)

	err = matches.CreateMatches(ctx, id, pgSlots())
	assert.ErrorIs(t, err, ErrMatchesExist)

	slots, err = matches.ListMatches(ctx, id)
	require.NoError(t, err)
	assert.Len(t, slots, models.SlotCount, "second create writes nothing")
}

func TestPostgresMatchRepository_GetMatch(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)
	id := seedPostgres(t, matches, tournaments)

	slot, err := matches.GetMatch(ctx, id, models.MustRoundTag(models.RoundOf16, 8))
	require.NoError(t, err)
	assert.Equal(t, "AR16-8", *slot.AwayTeam)
	assert.Nil(t, slot.HomeScore)

	_, err = matches.GetMatch(ctx, uuid.New(), models.FinalTag)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestPostgresMatchRepository_UpdateMatchParticipant(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)
	id := seedPostgres(t, matches, tournaments)
	qf := models.MustRoundTag(models.QuarterFinal, 1)

	t.Run("guard holds", func(t *testing.T) {
		require.NoError(t, matches.UpdateMatchParticipant(ctx, id, qf, models.PositionHome, nil, strPtr("HR16-1")))
		require.NoError(t, matches.UpdateMatchParticipant(ctx, id, qf, models.PositionHome, strPtr("HR16-1"), strPtr("AR16-1")))

		slot, err := matches.GetMatch(ctx, id, qf)
		require.NoError(t, err)
		assert.Equal(t, "AR16-1", *slot.HomeTeam)
		assert.Nil(t, slot.AwayTeam)
	})

	t.Run("stale expectation loses", func(t *testing.T) {
		err := matches.UpdateMatchParticipant(ctx, id, qf, models.PositionHome, strPtr("HR16-1"), strPtr("someone"))
		assert.ErrorIs(t, err, ErrMatchParticipantChanged)

		slot, err := matches.GetMatch(ctx, id, qf)
		require.NoError(t, err)
		assert.Equal(t, "AR16-1", *slot.HomeTeam, "losing write leaves the value alone")
	})

	t.Run("clear to nil", func(t *testing.T) {
		require.NoError(t, matches.UpdateMatchParticipant(ctx, id, qf, models.PositionHome, strPtr("AR16-1"), nil))
		slot, err := matches.GetMatch(ctx, id, qf)
		require.NoError(t, err)
		assert.Nil(t, slot.HomeTeam)
	})

	t.Run("concurrent writers, one winner", func(t *testing.T) {
		sf := models.MustRoundTag(models.SemiFinal, 2)
		candidates := []string{"HR16-5", "AR16-5", "HR16-6", "AR16-6"}
		errs := make([]error, len(candidates))
		var wg sync.WaitGroup
		for i, team := range candidates {
			wg.Add(1)
			go func(i int, team string) {
				defer wg.Done()
				errs[i] = matches.UpdateMatchParticipant(ctx, id, sf, models.PositionAway, nil, strPtr(team))
			}(i, team)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, ErrMatchParticipantChanged)
		}
		assert.Equal(t, 1, won)
	})

	t.Run("missing slot", func(t *testing.T) {
		err := matches.UpdateMatchParticipant(ctx, uuid.New(), qf, models.PositionHome, nil, strPtr("x"))
		assert.ErrorIs(t, err, ErrMatchNotFound)
	})

	t.Run("unknown position", func(t *testing.T) {
		err := matches.UpdateMatchParticipant(ctx, id, qf, models.SlotPosition("middle"), nil, strPtr("x"))
		assert.ErrorContains(t, err, "unknown slot position")
	})
}

func TestPostgresMatchRepository_UpdateMatchResult(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)
	id := seedPostgres(t, matches, tournaments)
	r16 := models.MustRoundTag(models.RoundOf16, 3)

	require.NoError(t, matches.UpdateMatchResult(ctx, id, r16, intPtr(2), intPtr(1), true))
	slot, err := matches.GetMatch(ctx, id, r16)
	require.NoError(t, err)
	assert.True(t, slot.Ready())
	assert.Equal(t, 2, *slot.HomeScore)

	require.NoError(t, matches.UpdateMatchResult(ctx, id, r16, nil, nil, false))
	slot, err = matches.GetMatch(ctx, id, r16)
	require.NoError(t, err)
	assert.False(t, slot.Completed)
	assert.Nil(t, slot.HomeScore)

	err = matches.UpdateMatchResult(ctx, uuid.New(), r16, intPtr(1), intPtr(0), true)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestPostgresTournamentRepository(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)

	id := uuid.New()
	tournament := &models.Tournament{ID: id, Name: "Winter Cup", Status: models.StatusActive}
	require.NoError(t, tournaments.Create(ctx, tournament))
	assert.False(t, tournament.CreatedAt.IsZero())

	err := tournaments.Create(ctx, &models.Tournament{ID: id, Name: "again", Status: models.StatusActive})
	assert.ErrorIs(t, err, ErrTournamentConflict)

	_, err = tournaments.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	require.NoError(t, tournaments.SetChampion(ctx, id, strPtr("Lions")))
	stored, err := tournaments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "Lions", *stored.ChampionTeam)

	require.NoError(t, tournaments.SetChampion(ctx, id, nil))
	stored, err = tournaments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Nil(t, stored.ChampionTeam)

	assert.ErrorIs(t, tournaments.SetChampion(ctx, uuid.New(), nil), ErrTournamentNotFound)

	active, err := tournaments.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)

	list, err := tournaments.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, matches.CreateMatches(ctx, id, pgSlots()))
	require.NoError(t, tournaments.Delete(ctx, id))
	slots, err := matches.ListMatches(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, slots, "slots are removed with their tournament")

	assert.ErrorIs(t, tournaments.Delete(ctx, id), ErrTournamentNotFound)
}

func TestPostgresMatchRepository_DeleteAllMatches(t *testing.T) {
	ctx := context.Background()
	matches, tournaments := postgresRepos(t)
	id := seedPostgres(t, matches, tournaments)

	require.NoError(t, matches.DeleteAllMatches(ctx, id))
	slots, err := matches.ListMatches(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, slots)

	require.NoError(t, matches.CreateMatches(ctx, id, pgSlots()), "slots can be rebuilt after deletion")
}
