// Package cache keeps parsed candidate profiles in Redis so repeated uploads of the same CV skip
// the LLM parser.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/matchai/internal/candidate"
)

const (
	profilePrefix = "matchai:profile:"
	DefaultTTL    = 7 * 24 * time.Hour
)

// ErrMiss is returned when no profile is cached under a hash.
var ErrMiss = errors.New("profile not cached")

type Config struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type Profiles struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfiles(client *redis.Client, ttl time.Duration) *Profiles {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Profiles{client: client, ttl: ttl}
}

type entry struct {
	Profile  candidate.Profile `json:"profile"`
	StoredAt time.Time         `json:"stored_at"`
}

// Get returns the cached profile for hash or ErrMiss.
func (p *Profiles) Get(ctx context.Context, hash string) (candidate.Profile, error) {
	data, err := p.client.Get(ctx, profilePrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return candidate.Profile{}, ErrMiss
	}
	if err != nil {
		return candidate.Profile{}, fmt.Errorf("get cached profile: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return candidate.Profile{}, fmt.Errorf("unmarshal cached profile: %w", err)
	}
	return e.Profile, nil
}

// Set stores profile under hash and refreshes its TTL.
func (p *Profiles) Set(ctx context.Context, hash string, profile candidate.Profile) error {
	data, err := json.Marshal(entry{Profile: profile, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := p.client.Set(ctx, profilePrefix+hash, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

func (p *Profiles) Delete(ctx context.Context, hash string) error {
	if err := p.client.Del(ctx, profilePrefix+hash).Err(); err != nil {
		return fmt.Errorf("delete cached profile: %w", err)
	}
	return nil
}
