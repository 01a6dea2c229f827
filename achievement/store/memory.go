// Package store provides in-memory achievement store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coachwise/achievement-engine/achievement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Stats are the materialized counters a user carries in one organization.
type Stats struct {
	CompletedTasks int64
	CheckinStreak  int64
	Gems           int64
	MessagesSent   int64
}

// Badge is the legacy mirror row.
type Badge struct {
	UserID   achievement.UserID
	BadgeKey string
	Title    string
}

type Memory struct {
	mu          sync.RWMutex
	definitions map[achievement.OrganizationID][]achievement.Definition
	unlocks     map[unlockKey]achievement.Unlock
	ledger      []achievement.LedgerEntry
	stats       map[userKey]Stats
	badges      []Badge
}

type unlockKey struct {
	UserID         achievement.UserID
	OrganizationID achievement.OrganizationID
	AchievementID  achievement.AchievementID
}

type userKey struct {
	UserID         achievement.UserID
	OrganizationID achievement.OrganizationID
}

var (
	_ achievement.TxStore      = (*Memory)(nil)
	_ achievement.LedgerReader = (*Memory)(nil)
	_ achievement.MetricSource = (*Memory)(nil)
	_ achievement.BadgeMirror  = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		definitions: make(map[achievement.OrganizationID][]achievement.Definition),
		unlocks:     make(map[unlockKey]achievement.Unlock),
		stats:       make(map[userKey]Stats),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

// SaveDefinition inserts or replaces a definition.
func (m *Memory) SaveDefinition(_ context.Context, def achievement.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	defs := m.definitions[def.OrganizationID]
	for i := range defs {
		if defs[i].ID == def.ID {
			defs[i] = def
			return nil
		}
	}
	m.definitions[def.OrganizationID] = append(defs, def)
	return nil
}

// SetStats replaces a user's counters.
func (m *Memory) SetStats(userID achievement.UserID, orgID achievement.OrganizationID, s Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[userKey{userID, orgID}] = s
}

// Stats returns a user's counters.
func (m *Memory) Stats(userID achievement.UserID, orgID achievement.OrganizationID) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats[userKey{userID, orgID}]
}

// Badges returns the mirrored legacy badge rows.
func (m *Memory) Badges() []Badge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Badge(nil), m.badges...)
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) ListActiveAutoEvaluateDefinitions(_ context.Context, orgID achievement.OrganizationID) ([]achievement.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []achievement.Definition
	for _, d := range m.definitions[orgID] {
		if d.Evaluable() {
			out = append(out, d)
		}
	}
	sortDefinitions(out)
	return out, nil
}

func (m *Memory) ListDefinitions(_ context.Context, orgID achievement.OrganizationID) ([]achievement.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []achievement.Definition
	for _, d := range m.definitions[orgID] {
		if d.Active {
			out = append(out, d)
		}
	}
	sortDefinitions(out)
	return out, nil
}

func sortDefinitions(defs []achievement.Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].SortOrder != defs[j].SortOrder {
			return defs[i].SortOrder < defs[j].SortOrder
		}
		return defs[i].ID < defs[j].ID
	})
}

// =============================================================================
// UNLOCKS
// =============================================================================

func (m *Memory) HasUnlock(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID, id achievement.AchievementID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.unlocks[unlockKey{userID, orgID, id}]
	return ok, nil
}

func (m *Memory) ListUnlocks(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) ([]achievement.Unlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []achievement.Unlock
	for k, u := range m.unlocks {
		if k.UserID == userID && k.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

// =============================================================================
// LEDGER / METRICS
// =============================================================================

func (m *Memory) LedgerEntries(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) ([]achievement.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []achievement.LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID && e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) CompletedTaskCount(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return m.Stats(userID, orgID).CompletedTasks, nil
}

func (m *Memory) CheckinStreak(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return m.Stats(userID, orgID).CheckinStreak, nil
}

func (m *Memory) CurrencyTotal(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return m.Stats(userID, orgID).Gems, nil
}

func (m *Memory) MessageCount(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return m.Stats(userID, orgID).MessagesSent, nil
}

// MirrorUnlock records a legacy badge row; duplicates are ignored.
func (m *Memory) MirrorUnlock(_ context.Context, def achievement.Definition, u achievement.Unlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.badges {
		if b.UserID == u.UserID && b.BadgeKey == string(def.ID) {
			return nil
		}
	}
	m.badges = append(m.badges, Badge{UserID: u.UserID, BadgeKey: string(def.ID), Title: def.Name})
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(achievement.UnlockWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	unlocks map[unlockKey]achievement.Unlock
	ledger  []achievement.LedgerEntry
	stats   map[userKey]Stats
}

func (m *Memory) snapshot() memorySnapshot {
	unlocks := make(map[unlockKey]achievement.Unlock, len(m.unlocks))
	for k, v := range m.unlocks {
		unlocks[k] = v
	}
	stats := make(map[userKey]Stats, len(m.stats))
	for k, v := range m.stats {
		stats[k] = v
	}
	return memorySnapshot{
		unlocks: unlocks,
		ledger:  append([]achievement.LedgerEntry(nil), m.ledger...),
		stats:   stats,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.unlocks = s.unlocks
	m.ledger = s.ledger
	m.stats = s.stats
}

// txView writes directly to the parent; the caller already holds m.mu.
type txView struct {
	parent *Memory
}

func (tv *txView) InsertUnlock(_ context.Context, u achievement.Unlock) error {
	k := unlockKey{u.UserID, u.OrganizationID, u.AchievementID}
	if _, ok := tv.parent.unlocks[k]; ok {
		return achievement.ErrAlreadyUnlocked
	}
	tv.parent.unlocks[k] = u
	return nil
}

func (tv *txView) CreditCurrency(_ context.Context, userID achievement.UserID, orgID achievement.OrganizationID, amount int64) error {
	k := userKey{userID, orgID}
	s := tv.parent.stats[k]
	s.Gems += amount
	tv.parent.stats[k] = s
	return nil
}

func (tv *txView) AppendLedger(_ context.Context, e achievement.LedgerEntry) error {
	tv.parent.ledger = append(tv.parent.ledger, e)
	return nil
}
