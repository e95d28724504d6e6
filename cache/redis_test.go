package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway Redis container and returns a cache bound to it.
func startRedis(t *testing.T, ttl time.Duration) *RedisBracketCache {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container tests are skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := NewRedisFromURL(ctx, "redis://"+endpoint+"/0", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleBracket(id uuid.UUID) *models.Bracket {
	home, away, champion := "Lions", "Tigers", "Lions"
	one, zero := 1, 0
	return &models.Bracket{
		Tournament: &models.Tournament{ID: id, Name: "Summer Cup", Status: models.StatusCompleted, ChampionTeam: &champion},
		Round1: []*models.MatchSlot{{
			TournamentID: id,
			Tag:          models.MustRoundTag(models.RoundOf16, 1),
			HomeTeam:     &home,
			AwayTeam:     &away,
			HomeScore:    &one,
			AwayScore:    &zero,
			Completed:    true,
			Location:     "Central Stadium",
		}},
		Final:    &models.MatchSlot{TournamentID: id, Tag: models.FinalTag},
		Champion: &champion,
	}
}

func TestBracketKey(t *testing.T) {
	id := uuid.MustParse("3e0b7a52-1c4d-4b7e-9a1f-5d2c8e6f0a93")
	assert.Equal(t, "knockout:bracket:3e0b7a52-1c4d-4b7e-9a1f-5d2c8e6f0a93", bracketKey(id))
}

func TestNewRedisBracketCache_DefaultTTL(t *testing.T) {
	c := NewRedisBracketCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0)
	defer c.Close()
	assert.Equal(t, 5*time.Minute, c.ttl)
}

func TestNewRedisFromURL_Errors(t *testing.T) {
	_, err := NewRedisFromURL(context.Background(), "http://not-redis", time.Minute)
	assert.ErrorContains(t, err, "failed to parse REDIS_URL")

	_, err = NewRedisFromURL(context.Background(), "redis://127.0.0.1:1/0", time.Minute)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestRedisBracketCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := startRedis(t, time.Minute)
	id := uuid.New()

	got, err := c.GetBracket(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "miss is not an error")

	require.NoError(t, c.SetBracket(ctx, id, sampleBracket(id)))

	got, err = c.GetBracket(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.Tournament.ID)
	assert.Equal(t, "Summer Cup", got.Tournament.Name)
	require.Len(t, got.Round1, 1)
	assert.Equal(t, models.MustRoundTag(models.RoundOf16, 1), got.Round1[0].Tag)
	assert.Equal(t, "Lions", *got.Round1[0].HomeTeam)
	assert.Equal(t, 1, *got.Round1[0].HomeScore)
	assert.True(t, got.Round1[0].Completed)
	assert.Equal(t, models.FinalTag, got.Final.Tag)
	require.NotNil(t, got.Champion)
	assert.Equal(t, "Lions", *got.Champion)

	ttl, err := c.client.TTL(ctx, bracketKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	other, err := c.GetBracket(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, other, "entries are keyed per tournament")
}

func TestRedisBracketCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := startRedis(t, time.Minute)
	id := uuid.New()

	require.NoError(t, c.SetBracket(ctx, id, sampleBracket(id)))
	require.NoError(t, c.InvalidateBracket(ctx, id))

	got, err := c.GetBracket(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, c.InvalidateBracket(ctx, id), "invalidating a missing entry is not an error")
}

func TestRedisBracketCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := startRedis(t, time.Minute)
	id := uuid.New()

	require.NoError(t, c.client.Set(ctx, bracketKey(id), "{not json", time.Minute).Err())

	_, err := c.GetBracket(ctx, id)
	assert.ErrorContains(t, err, "corrupt cached bracket")
}
