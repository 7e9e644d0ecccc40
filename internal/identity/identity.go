// Package identity maps authenticated portal users to their game panel user.
package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blockhost-portal/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

var ErrNotLinked = errors.New("caller is not linked to a panel user")

type Mapping struct {
	CallerID       string `json:"callerId"`
	ExternalUserID int    `json:"externalUserId"`
}

type Repository interface {
	// Lookup returns ErrNotLinked when the caller has no mapping.
	Lookup(ctx context.Context, callerID string) (*Mapping, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Lookup(ctx context.Context, callerID string) (*Mapping, error) {
	var externalID int
	err := r.db.QueryRowContext(ctx,
		`SELECT pterodactyl_user_id FROM user_server_mappings WHERE user_id = $1`,
		callerID,
	).Scan(&externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("lookup mapping: %w", err)
	}
	return &Mapping{CallerID: callerID, ExternalUserID: externalID}, nil
}

const DefaultCacheTTL = 5 * time.Minute

// CachedRepository fronts another repository with Redis. Only positive
// lookups are cached so a newly provisioned link is seen immediately.
type CachedRepository struct {
	next   Repository
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(next Repository, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRepository{next: next, redis: rdb, ttl: ttl, logger: log}
}

func cacheKey(callerID string) string {
	return "identity:" + callerID
}

func (c *CachedRepository) Lookup(ctx context.Context, callerID string) (*Mapping, error) {
	key := cacheKey(callerID)

	cached, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var m Mapping
		if jsonErr := json.Unmarshal(cached, &m); jsonErr == nil {
			return &m, nil
		}
		c.logger.Warn("dropping unreadable identity cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("identity cache read failed", map[string]interface{}{"error": err})
	}

	m, err := c.next.Lookup(ctx, callerID)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(m)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("identity cache write failed", map[string]interface{}{"error": err})
	}
	return m, nil
}
