package achievement

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Status is one row of a user's achievement screen.
type Status struct {
	Definition  Definition
	Unlocked    bool
	UnlockedAt  *time.Time
	Progress    int64
	MaxProgress int64
}

// ProgressView lists every active definition in the organization with the
// user's display progress. Read-only: it never unlocks anything.
//
// Unlocked rows report the progress captured at unlock time. Locked rows
// report the current metric capped at MaxProgress; manual and unknown kinds
// report 0. A failing metric source degrades that row to 0 rather than
// failing the view.
func ProgressView(ctx context.Context, catalog Catalog, unlocks UnlockReader, metrics *MetricRegistry, userID UserID, orgID OrganizationID) ([]Status, error) {
	defs, err := catalog.ListDefinitions(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	rows, err := unlocks.ListUnlocks(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	byID := make(map[AchievementID]Unlock, len(rows))
	for _, u := range rows {
		byID[u.AchievementID] = u
	}

	cache := newMetricCache(metrics, userID, orgID)
	out := make([]Status, 0, len(defs))
	for _, def := range defs {
		st := Status{Definition: def, MaxProgress: def.EffectiveMaxProgress()}
		if u, ok := byID[def.ID]; ok {
			at := u.UnlockedAt
			st.Unlocked = true
			st.UnlockedAt = &at
			st.Progress = u.Progress
		} else if !def.MetricKind.IsManual() {
			if value, err := cache.get(ctx, def.MetricKind); err == nil {
				st.Progress = def.CappedProgress(value)
			}
		}
		out = append(out, st)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Definition, out[j].Definition
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
	return out, nil
}
