/*
store.go - Persistence interfaces consumed by the evaluator

KEY INTERFACES:
  Catalog:      Read-only access to achievement definitions
  UnlockReader: Idempotence guard and unlock listing
  UnlockWriter: The three writes of one unlock (row, credit, ledger)
  TxStore:      Runs one unlock's writes atomically
  LedgerReader: Gems history and cached total (for reconciliation)
  MetricSource: Already-materialized user counters
  BadgeMirror:  Best-effort legacy badge sink

UNIQUENESS:
  Implementations MUST enforce a uniqueness constraint on
  (user, organization, achievement) and return ErrAlreadyUnlocked when an
  insert violates it. Achievement IDs are only unique per organization, so
  the organization is part of the key.

TRANSACTION SCOPE:
  WithTx wraps exactly one achievement's unlock. If fn returns an error the
  row, the credit and the ledger entry are all rolled back.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:      Production SQLite
  - achievement/store/memory.go: In-memory for testing
*/
package achievement

import "context"

// Catalog reads achievement definitions.
type Catalog interface {
	// ListActiveAutoEvaluateDefinitions returns definitions with
	// Active && AutoEvaluate, excluding manual kinds.
	ListActiveAutoEvaluateDefinitions(ctx context.Context, orgID OrganizationID) ([]Definition, error)

	// ListDefinitions returns every active definition, manual included.
	ListDefinitions(ctx context.Context, orgID OrganizationID) ([]Definition, error)
}

// UnlockReader answers "has this user already unlocked this achievement".
type UnlockReader interface {
	HasUnlock(ctx context.Context, userID UserID, orgID OrganizationID, achievementID AchievementID) (bool, error)
	ListUnlocks(ctx context.Context, userID UserID, orgID OrganizationID) ([]Unlock, error)
}

// UnlockWriter holds the writes that make up a single unlock.
// There is no Update and no Delete.
type UnlockWriter interface {
	// InsertUnlock returns ErrAlreadyUnlocked on a uniqueness conflict.
	InsertUnlock(ctx context.Context, u Unlock) error

	// CreditCurrency increments the cached gem total. It never overwrites it.
	CreditCurrency(ctx context.Context, userID UserID, orgID OrganizationID, amount int64) error

	// AppendLedger appends a gems-history entry.
	AppendLedger(ctx context.Context, e LedgerEntry) error
}

// TxStore is everything the evaluator needs from persistence.
type TxStore interface {
	Catalog
	UnlockReader

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(UnlockWriter) error) error
}

// LedgerReader reads the gems history alongside the cached total.
type LedgerReader interface {
	LedgerEntries(ctx context.Context, userID UserID, orgID OrganizationID) ([]LedgerEntry, error)
	CurrencyTotal(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
}

// MetricSource exposes counters maintained outside this package.
// Every lookup is keyed by (user, organization) and is read-only.
type MetricSource interface {
	CompletedTaskCount(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
	CheckinStreak(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
	CurrencyTotal(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
	MessageCount(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
}

// BadgeMirror receives a copy of every committed unlock for the legacy
// badge table. Failures are logged and dropped.
type BadgeMirror interface {
	MirrorUnlock(ctx context.Context, def Definition, u Unlock) error
}
