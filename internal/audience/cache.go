package audience

import (
	"context"
	"time"

	"github.com/angelmondragon/allocations-backend/pkg/enums"
	"github.com/angelmondragon/allocations-backend/pkg/logger"
)

// MemberCache stores resolved member ids per source item.
type MemberCache interface {
	GetMembers(ctx context.Context, kind, sourceID string) ([]string, bool, error)
	SetMembers(ctx context.Context, kind, sourceID string, members []string, ttl time.Duration) error
}

// CachedResolver serves member lookups from the cache and falls through to the
// wrapped resolver on a miss. Cache failures are logged and ignored.
type CachedResolver struct {
	next  MemberResolver
	cache MemberCache
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCachedResolver(next MemberResolver, cache MemberCache, ttl time.Duration, logg *logger.Logger) *CachedResolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &CachedResolver{next: next, cache: cache, ttl: ttl, logg: logg}
}

func (r *CachedResolver) Members(ctx context.Context, kind enums.SourceKind, sourceID string) ([]string, error) {
	if r.cache == nil || r.ttl <= 0 {
		return r.next.Members(ctx, kind, sourceID)
	}

	members, ok, err := r.cache.GetMembers(ctx, kind.String(), sourceID)
	switch {
	case err != nil:
		r.warn(ctx, kind, sourceID, "member cache read failed", err)
	case ok:
		return members, nil
	}

	members, err = r.next.Members(ctx, kind, sourceID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetMembers(ctx, kind.String(), sourceID, members, r.ttl); err != nil {
		r.warn(ctx, kind, sourceID, "member cache write failed", err)
	}
	return members, nil
}

func (r *CachedResolver) warn(ctx context.Context, kind enums.SourceKind, sourceID, msg string, err error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"source_type": kind.String(),
		"source_id":   sourceID,
		"error":       err.Error(),
	})
	r.logg.Warn(ctx, msg)
}
