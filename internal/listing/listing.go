// Package listing defines the topic listing order: sort keys, search
// matching, pinned-first ordering and paging over in-memory slices. The topic
// repository runs the same rules in SQL.
package listing

import (
	"sort"
	"strings"

	"agora/internal/models"
)

// SortKey selects the primary ordering of a topic list.
type SortKey string

const (
	SortRecent  SortKey = "recent"
	SortPopular SortKey = "popular"
	SortReplies SortKey = "replies"
	SortViews   SortKey = "views"
)

// ParseSortKey maps a query value to a SortKey. Empty means recent.
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRecent:
		return SortRecent, true
	case SortPopular:
		return SortPopular, true
	case SortReplies:
		return SortReplies, true
	case SortViews:
		return SortViews, true
	}
	return "", false
}

// Matches reports whether topic satisfies the search term: a
// case-insensitive substring of the title or content, or a case-insensitive
// exact match on one of its tags. An empty term matches everything.
func Matches(topic *models.Topic, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(topic.Title), term) ||
		strings.Contains(strings.ToLower(topic.Content), term) {
		return true
	}
	for _, tag := range topic.Tags {
		if strings.ToLower(tag) == term {
			return true
		}
	}
	return false
}

// Filter keeps the topics in category (CategoryAll or empty keeps every
// category) that match term. The input order is preserved.
func Filter(topics []*models.Topic, category models.Category, term string) []*models.Topic {
	out := make([]*models.Topic, 0, len(topics))
	for _, t := range topics {
		if category != "" && category != models.CategoryAll && t.Category != category {
			continue
		}
		if Matches(t, term) {
			out = append(out, t)
		}
	}
	return out
}

func primary(key SortKey, t *models.Topic) int {
	switch key {
	case SortPopular:
		return t.Votes.Score()
	case SortReplies:
		return t.RepliesCount
	case SortViews:
		return t.ViewsCount
	}
	return 0
}

// Sort orders topics in place by key, descending, breaking ties by
// updated_at then id, both descending. Pinned topics are then moved to the
// front without disturbing the relative order within either group.
func Sort(topics []*models.Topic, key SortKey) {
	sort.SliceStable(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if key != SortRecent {
			if pa, pb := primary(key, a), primary(key, b); pa != pb {
				return pa > pb
			}
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].IsPinned && !topics[j].IsPinned
	})
}

// Page returns the window [offset, offset+limit). A non-positive limit
// returns everything after offset.
func Page(topics []*models.Topic, limit, offset int) []*models.Topic {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(topics) {
		return []*models.Topic{}
	}
	end := len(topics)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return topics[offset:end]
}
