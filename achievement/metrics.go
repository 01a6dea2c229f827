/*
metrics.go - Metric resolver registry

PURPOSE:
  Maps each MetricKind to a resolver that reads the user's current value.
  New kinds are added by registering a resolver, not by editing the
  evaluator. Kinds with no resolver are inert.

USAGE:
  reg := achievement.DefaultMetrics(store)
  reg.Register("sessions_booked", achievement.MetricResolverFunc(countSessions))
*/
package achievement

import (
	"context"
	"sort"
	"sync"
)

// MetricResolver reads one metric value for a user in an organization.
type MetricResolver interface {
	Resolve(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)
}

// MetricResolverFunc adapts a function to MetricResolver.
type MetricResolverFunc func(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error)

func (f MetricResolverFunc) Resolve(ctx context.Context, userID UserID, orgID OrganizationID) (int64, error) {
	return f(ctx, userID, orgID)
}

// MetricRegistry is safe for concurrent use.
type MetricRegistry struct {
	mu        sync.RWMutex
	resolvers map[MetricKind]MetricResolver
}

func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{resolvers: make(map[MetricKind]MetricResolver)}
}

// Register adds or replaces the resolver for kind.
// Registering MetricManual is ignored: manual achievements have no metric.
func (r *MetricRegistry) Register(kind MetricKind, resolver MetricResolver) {
	if kind.IsManual() || resolver == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = resolver
}

// Lookup returns the resolver for kind, or ErrUnknownMetricKind.
func (r *MetricRegistry) Lookup(kind MetricKind) (MetricResolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[kind]
	if !ok {
		return nil, ErrUnknownMetricKind
	}
	return res, nil
}

// Kinds returns the registered kinds, sorted.
func (r *MetricRegistry) Kinds() []MetricKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]MetricKind, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultMetrics registers the four built-in kinds against src.
func DefaultMetrics(src MetricSource) *MetricRegistry {
	reg := NewMetricRegistry()
	reg.Register(MetricTasksCompleted, MetricResolverFunc(src.CompletedTaskCount))
	reg.Register(MetricCheckinStreak, MetricResolverFunc(src.CheckinStreak))
	reg.Register(MetricCurrencyEarned, MetricResolverFunc(src.CurrencyTotal))
	reg.Register(MetricMessagesSent, MetricResolverFunc(src.MessageCount))
	return reg
}

// metricCache memoizes one value per kind for the duration of a pass.
// Failures are cached too, so a broken source is hit once per pass.
type metricCache struct {
	registry *MetricRegistry
	userID   UserID
	orgID    OrganizationID
	values   map[MetricKind]metricValue
}

type metricValue struct {
	value int64
	err   error
}

func newMetricCache(reg *MetricRegistry, userID UserID, orgID OrganizationID) *metricCache {
	return &metricCache{
		registry: reg,
		userID:   userID,
		orgID:    orgID,
		values:   make(map[MetricKind]metricValue),
	}
}

func (c *metricCache) get(ctx context.Context, kind MetricKind) (int64, error) {
	if v, ok := c.values[kind]; ok {
		return v.value, v.err
	}
	res, err := c.registry.Lookup(kind)
	if err != nil {
		return 0, err
	}
	value, err := res.Resolve(ctx, c.userID, c.orgID)
	c.values[kind] = metricValue{value: value, err: err}
	return value, err
}
