package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"golang.org/x/sync/singleflight"
)

// ProfileLookup resolves author profiles for display. Missing profiles are
// simply absent from the result.
type ProfileLookup interface {
	Lookup(ctx context.Context, userIDs []uint) map[uint]*models.AuthorProfile
}

// ProfileDirectory reads the externally owned author profiles through a
// Redis cache-aside layer. Concurrent misses for the same id set share one
// database query.
type ProfileDirectory struct {
	repo   repository.ProfileRepository
	cache  *cache.JSONCache
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewProfileDirectory(repo repository.ProfileRepository, jsonCache *cache.JSONCache, ttl time.Duration, logger *slog.Logger) *ProfileDirectory {
	if ttl <= 0 {
		ttl = cache.ProfileTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileDirectory{repo: repo, cache: jsonCache, ttl: ttl, logger: logger}
}

// Lookup never fails: profiles only decorate responses, so cache and
// database errors are logged and the affected authors are left without a
// profile.
func (d *ProfileDirectory) Lookup(ctx context.Context, userIDs []uint) map[uint]*models.AuthorProfile {
	ids := uniqueIDs(userIDs)
	out := make(map[uint]*models.AuthorProfile, len(ids))
	if len(ids) == 0 {
		return out
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.ProfileKey(id)
	}

	missIdx, err := d.cache.MGetJSON(ctx, keys, func(i int, raw []byte) error {
		var p models.AuthorProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		out[ids[i]] = &p
		return nil
	})
	if err != nil {
		d.logger.WarnContext(ctx, "profile cache read failed", slog.String("error", err.Error()))
		missIdx = missIdx[:0]
		for i := range ids {
			missIdx = append(missIdx, i)
		}
	}

	if hits := len(ids) - len(missIdx); hits > 0 {
		observability.ProfileCacheLookups.WithLabelValues("hit").Add(float64(hits))
	}
	if len(missIdx) == 0 {
		return out
	}
	observability.ProfileCacheLookups.WithLabelValues("miss").Add(float64(len(missIdx)))

	missing := make([]uint, len(missIdx))
	for i, idx := range missIdx {
		missing[i] = ids[idx]
	}

	v, err, _ := d.group.Do(flightKey(missing), func() (interface{}, error) {
		profiles, err := d.repo.GetByUserIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for i := range profiles {
			if err := d.cache.SetJSON(ctx, cache.ProfileKey(profiles[i].UserID), profiles[i], d.ttl); err != nil {
				d.logger.WarnContext(ctx, "profile cache write failed", slog.String("error", err.Error()))
			}
		}
		return profiles, nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "profile lookup failed", slog.String("error", err.Error()))
		return out
	}

	for _, p := range v.([]models.AuthorProfile) {
		out[p.UserID] = &p
	}
	return out
}

// Invalidate drops a cached profile so the next lookup reads it fresh.
func (d *ProfileDirectory) Invalidate(ctx context.Context, userID uint) {
	d.cache.Invalidate(ctx, cache.ProfileKey(userID))
}

func uniqueIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func flightKey(ids []uint) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

func attachTopicAuthors(ctx context.Context, lookup ProfileLookup, topics ...*models.Topic) {
	if lookup == nil || len(topics) == 0 {
		return
	}
	ids := make([]uint, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.AuthorID)
	}
	profiles := lookup.Lookup(ctx, ids)
	for _, t := range topics {
		t.Author = profiles[t.AuthorID]
	}
}

func attachReplyAuthors(ctx context.Context, lookup ProfileLookup, replies ...*models.Reply) {
	if lookup == nil || len(replies) == 0 {
		return
	}
	ids := make([]uint, 0, len(replies))
	for _, r := range replies {
		ids = append(ids, r.AuthorID)
	}
	profiles := lookup.Lookup(ctx, ids)
	for _, r := range replies {
		r.Author = profiles[r.AuthorID]
	}
}
