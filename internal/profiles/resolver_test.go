package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/cache"
	"github.com/spigell/matchai/internal/candidate"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/repository"
	"github.com/spigell/matchai/internal/seniority"
)

type stubParser struct {
	calls   int
	profile *candidate.Profile
	err     error
}

func (s *stubParser) ParseProfile(_ context.Context, _ string) (*candidate.Profile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.profile
	return &copied, nil
}

func newParser() *stubParser {
	return &stubParser{profile: &candidate.Profile{
		Skills:    []string{"Python", "SQL"},
		Seniority: seniority.Mid,
	}}
}

func newCache(t *testing.T) *cache.Profiles {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewProfiles(client, 0)
}

const cvText = "Jane Doe\nPython and SQL developer"

func TestResolveParsesOnceThenCaches(t *testing.T) {
	repo := repository.NewMemory()
	parser := newParser()
	resolver, err := New(Deps{Candidates: repo, Parser: parser, Cache: newCache(t)})
	require.NoError(t, err)
	ctx := context.Background()

	c, source, err := resolver.Resolve(ctx, cvText)
	require.NoError(t, err)
	assert.Equal(t, SourceParser, source)
	assert.Equal(t, candidate.Hash(cvText), c.Hash)
	assert.Equal(t, []string{"python", "sql"}, c.Profile.Skills)

	stored, err := repo.Candidate(ctx, c.Hash)
	require.NoError(t, err)
	assert.Equal(t, c.Profile.Skills, stored.Profile.Skills)

	again, source, err := resolver.Resolve(ctx, cvText)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, c.Profile.Skills, again.Profile.Skills)
	assert.Equal(t, 1, parser.calls)
}

func TestResolveFallsBackToRepository(t *testing.T) {
	repo := repository.NewMemory()
	parser := newParser()
	ctx := context.Background()

	first, err := New(Deps{Candidates: repo, Parser: parser})
	require.NoError(t, err)
	_, _, err = first.Resolve(ctx, cvText)
	require.NoError(t, err)

	profileCache := newCache(t)
	second, err := New(Deps{Candidates: repo, Parser: parser, Cache: profileCache})
	require.NoError(t, err)

	_, source, err := second.Resolve(ctx, cvText)
	require.NoError(t, err)
	assert.Equal(t, SourceRepository, source)
	assert.Equal(t, 1, parser.calls)

	_, err = profileCache.Get(ctx, candidate.Hash(cvText))
	assert.NoError(t, err, "repository hit is written back to the cache")
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()

	resolver, err := New(Deps{Candidates: repository.NewMemory()})
	require.NoError(t, err)

	_, _, err = resolver.Resolve(ctx, "   ")
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))

	_, _, err = resolver.Resolve(ctx, cvText)
	assert.True(t, failure.IsConfiguration(err))

	broken := &stubParser{err: errors.New("model unavailable")}
	resolver, err = New(Deps{Candidates: repository.NewMemory(), Parser: broken})
	require.NoError(t, err)
	_, _, err = resolver.Resolve(ctx, cvText)
	assert.ErrorContains(t, err, "model unavailable")

	_, err = New(Deps{})
	assert.True(t, failure.IsConfiguration(err))
}

func TestStoreAndLookup(t *testing.T) {
	repo := repository.NewMemory()
	resolver, err := New(Deps{Candidates: repo})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = resolver.Store(ctx, cvText, candidate.Profile{Skills: []string{"Go"}})
	assert.Equal(t, failure.KindValidation, failure.KindOf(err), "seniority is required")

	c, err := resolver.Store(ctx, cvText, candidate.Profile{Skills: []string{" Go "}, Seniority: seniority.Senior})
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, c.Profile.Skills)

	latest, err := resolver.Lookup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, c.Hash, latest.Hash)

	byHash, err := resolver.Lookup(ctx, c.Hash)
	require.NoError(t, err)
	assert.Equal(t, seniority.Senior, byHash.Profile.Seniority)

	_, err = resolver.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
