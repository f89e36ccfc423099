package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/seniority"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestProfilesRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewProfiles(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrMiss)

	profile := candidate.Profile{
		Skills:          []string{"go", "sql"},
		Seniority:       seniority.Senior,
		YearsExperience: 6,
		Summary:         "backend engineer",
	}
	require.NoError(t, store.Set(ctx, "abc", profile))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, profile.Skills, got.Skills)
	assert.Equal(t, seniority.Senior, got.Seniority)
	assert.Equal(t, 6.0, got.YearsExperience)

	assert.True(t, mr.Exists(profilePrefix+"abc"))
	assert.Equal(t, time.Hour, mr.TTL(profilePrefix+"abc"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestProfilesDelete(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewProfiles(client, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "abc", candidate.Profile{Seniority: seniority.Mid}))
	require.NoError(t, store.Delete(ctx, "abc"))

	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, DefaultTTL, store.ttl)
}

func TestProfilesCorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewProfiles(client, time.Hour)

	require.NoError(t, mr.Set(profilePrefix+"bad", "{not json"))
	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := Dial(context.Background(), Config{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = Dial(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}
