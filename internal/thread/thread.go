// Package thread assembles flat reply lists into two-level reply trees.
package thread

import (
	"sort"

	"agora/internal/models"
)

// Build groups replies into top-level nodes with their direct children.
// Both levels are ordered by creation time, oldest first, with id as the
// tie-breaker. Nested replies whose parent is not a top-level reply in the
// input are dropped.
func Build(replies []*models.Reply) []models.ReplyNode {
	var top, nested []*models.Reply
	for _, r := range replies {
		if r == nil {
			continue
		}
		if r.IsTopLevel() {
			top = append(top, r)
		} else {
			nested = append(nested, r)
		}
	}

	sortByCreated(top)
	sortByCreated(nested)

	nodes := make([]models.ReplyNode, len(top))
	index := make(map[uint]int, len(top))
	for i, r := range top {
		nodes[i] = models.ReplyNode{Reply: *r, Children: []models.Reply{}}
		index[r.ID] = i
	}

	for _, r := range nested {
		i, ok := index[*r.ParentReplyID]
		if !ok {
			continue
		}
		nodes[i].Children = append(nodes[i].Children, *r)
	}

	return nodes
}

func sortByCreated(replies []*models.Reply) {
	sort.SliceStable(replies, func(i, j int) bool {
		a, b := replies[i], replies[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
