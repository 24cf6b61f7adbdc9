// Package channel selects upstream channels eligible to serve a request.
package channel

import (
	"cmp"
	"slices"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/samber/lo"
)

// SelectCandidates returns the channels that can serve model for group, highest priority first
// and lowest id first among equal priorities. It never mutates channels; the returned pointers
// reference its elements and must be treated as read-only.
//
// A channel qualifies when it is enabled, serves model directly or through its mapping table,
// and, if the group restricts sets, belongs to at least one of them.
func SelectCandidates(channels []models.Channel, model string, group *models.Group) []*models.Channel {
	var allowedSets []string
	if group != nil {
		allowedSets = group.AvailableSets
	}

	candidates := make([]*models.Channel, 0, len(channels))
	for i := range channels {
		ch := &channels[i]
		if !ch.Enabled() || !ch.SupportsModel(model) {
			continue
		}
		if len(allowedSets) > 0 && !lo.Some(allowedSets, ch.Sets) {
			continue
		}
		candidates = append(candidates, ch)
	}

	slices.SortStableFunc(candidates, func(a, b *models.Channel) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return candidates
}

// Exclude returns candidates without the channels whose id is in ids, preserving order.
func Exclude(candidates []*models.Channel, ids ...uint64) []*models.Channel {
	if len(ids) == 0 {
		return candidates
	}
	return lo.Reject(candidates, func(ch *models.Channel, _ int) bool {
		return slices.Contains(ids, ch.ID)
	})
}

// VisibleModels returns the sorted, de-duplicated model names group can reach through enabled
// channels, including names served through mapping tables.
func VisibleModels(channels []models.Channel, group *models.Group) []string {
	var allowedSets []string
	if group != nil {
		allowedSets = group.AvailableSets
	}
	var names []string
	for i := range channels {
		ch := &channels[i]
		if !ch.Enabled() {
			continue
		}
		if len(allowedSets) > 0 && !lo.Some(allowedSets, ch.Sets) {
			continue
		}
		names = append(names, ch.Models...)
		names = append(names, lo.Keys(ch.ModelMapping.Data())...)
	}
	names = lo.Uniq(lo.Compact(names))
	slices.Sort(names)
	return names
}
