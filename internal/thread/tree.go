// Package thread turns the flat comment rows the repository returns into the
// nested forest the API serves. It is pure: no I/O, deterministic output.
package thread

import (
	"sort"

	"templora_comments/internal/model"
)

// Build indexes the flat list by id, attaches each reply to its parent, and
// sorts the result. Children whose parent is missing (hard-deleted parent, or
// a pending parent filtered out for this viewer) are promoted to roots rather
// than dropped.
//
// Roots are ordered pinned-first, then newest-first. Replies are ordered
// oldest-first at every depth, so a chain reads in writing order.
func Build(flat []*model.Comment) []*model.Comment {
	byID := make(map[int64]*model.Comment, len(flat))
	for _, c := range flat {
		c.Replies = []*model.Comment{}
		byID[c.ID] = c
	}

	var roots []*model.Comment
	for _, c := range flat {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].Pinned != roots[j].Pinned {
			return roots[i].Pinned
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})

	for _, c := range flat {
		sortReplies(c.Replies)
	}

	return roots
}

func sortReplies(replies []*model.Comment) {
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
}

// Count returns the number of nodes in the forest. Helper for list responses.
func Count(roots []*model.Comment) int {
	n := 0
	for _, r := range roots {
		n += 1 + Count(r.Replies)
	}
	return n
}
