/*
ledger.go - Gems history reconciliation

PURPOSE:
  The cached gem total is a counter owned by code outside this package.
  This engine only ever increments it, inside the same transaction as the
  matching ledger entry. Reconcile checks that the counter still equals
  the sum of the ledger so drift is visible. It never rewrites the counter.
*/
package achievement

import (
	"context"
	"fmt"
)

// Reconciliation compares the cached gem total with the ledger.
type Reconciliation struct {
	UserID           UserID
	OrganizationID   OrganizationID
	CachedTotal      int64
	LedgerTotal      int64
	AchievementTotal int64 // portion of LedgerTotal sourced from achievements
	Entries          int
}

// Drift is CachedTotal - LedgerTotal. Zero when consistent.
func (r Reconciliation) Drift() int64 { return r.CachedTotal - r.LedgerTotal }

// Consistent reports whether the cached total is derivable from the ledger.
func (r Reconciliation) Consistent() bool { return r.Drift() == 0 }

// Reconcile sums the ledger for a user and compares it with the cached total.
func Reconcile(ctx context.Context, ledger LedgerReader, userID UserID, orgID OrganizationID) (Reconciliation, error) {
	entries, err := ledger.LedgerEntries(ctx, userID, orgID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("load ledger: %w", err)
	}
	cached, err := ledger.CurrencyTotal(ctx, userID, orgID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("load cached total: %w", err)
	}

	rec := Reconciliation{
		UserID:         userID,
		OrganizationID: orgID,
		CachedTotal:    cached,
		Entries:        len(entries),
	}
	for _, e := range entries {
		rec.LedgerTotal += e.Amount
		if e.SourceType == SourceAchievement {
			rec.AchievementTotal += e.Amount
		}
	}
	return rec, nil
}
