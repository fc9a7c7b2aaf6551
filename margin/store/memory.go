// Package store provides an in-memory margin.Store.
package store

import (
	"context"
	"sync"

	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds one margin.Records. View holds the read lock for the whole
// callback, so every read inside it sees the same records.
type Memory struct {
	mu     sync.RWMutex
	recs   margin.Records
	closed bool
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a store preloaded with recs.
func NewMemoryWith(recs margin.Records) *Memory {
	return &Memory{recs: recs}
}

// Replace swaps the whole contents atomically.
func (m *Memory) Replace(_ context.Context, recs margin.Records) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return margin.ErrStoreClosed
	}
	m.recs = recs
	return nil
}

// View runs fn against the current records under the read lock.
func (m *Memory) View(ctx context.Context, fn func(margin.Reader) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return margin.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(memReader{recs: &m.recs})
}

// Query is not available without a SQL engine.
func (m *Memory) Query(_ context.Context, _ string) (margin.QueryResult, error) {
	return margin.QueryResult{}, margin.ErrQueryUnsupported
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// =============================================================================
// READER
// =============================================================================

type memReader struct {
	recs *margin.Records
}

// filter copies the rows matching f. A cancelled ctx stops the read.
func filter[T any](ctx context.Context, rows []T, f margin.Filter, project func(T) margin.ProjectID) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if f.Matches(project(r)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (r memReader) Contracts(ctx context.Context, f margin.Filter) ([]margin.Contract, error) {
	return filter(ctx, r.recs.Contracts, f, func(c margin.Contract) margin.ProjectID { return c.ProjectID })
}

func (r memReader) ScheduleLines(ctx context.Context, f margin.Filter) ([]margin.ScheduleLine, error) {
	return filter(ctx, r.recs.ScheduleLines, f, func(l margin.ScheduleLine) margin.ProjectID { return l.ProjectID })
}

func (r memReader) LineBudgets(ctx context.Context, f margin.Filter) ([]margin.LineBudget, error) {
	return filter(ctx, r.recs.LineBudgets, f, func(b margin.LineBudget) margin.ProjectID { return b.ProjectID })
}

func (r memReader) LaborEntries(ctx context.Context, f margin.Filter) ([]margin.LaborEntry, error) {
	return filter(ctx, r.recs.LaborEntries, f, func(e margin.LaborEntry) margin.ProjectID { return e.ProjectID })
}

func (r memReader) MaterialDeliveries(ctx context.Context, f margin.Filter) ([]margin.MaterialDelivery, error) {
	return filter(ctx, r.recs.MaterialDeliveries, f, func(d margin.MaterialDelivery) margin.ProjectID { return d.ProjectID })
}

func (r memReader) ChangeOrders(ctx context.Context, f margin.Filter) ([]margin.ChangeOrder, error) {
	return filter(ctx, r.recs.ChangeOrders, f, func(co margin.ChangeOrder) margin.ProjectID { return co.ProjectID })
}

func (r memReader) BillingApplications(ctx context.Context, f margin.Filter) ([]margin.BillingApplication, error) {
	return filter(ctx, r.recs.BillingApplications, f, func(a margin.BillingApplication) margin.ProjectID { return a.ProjectID })
}

func (r memReader) BillingLineItems(ctx context.Context, f margin.Filter) ([]margin.BillingLineItem, error) {
	return filter(ctx, r.recs.BillingLineItems, f, func(it margin.BillingLineItem) margin.ProjectID { return it.ProjectID })
}

func (r memReader) ScopeCreepCandidates(ctx context.Context, f margin.Filter) ([]margin.ScopeCreepCandidate, error) {
	return filter(ctx, r.recs.ScopeCreepCandidates, f, func(c margin.ScopeCreepCandidate) margin.ProjectID { return c.ProjectID })
}

// LatestBillingApplications keeps the highest application number per project.
func (r memReader) LatestBillingApplications(ctx context.Context, f margin.Filter) ([]margin.BillingApplication, error) {
	apps, err := r.BillingApplications(ctx, f)
	if err != nil {
		return nil, err
	}
	latest := make(map[margin.ProjectID]int)
	var order []margin.ProjectID
	for i, a := range apps {
		j, ok := latest[a.ProjectID]
		if !ok {
			order = append(order, a.ProjectID)
			latest[a.ProjectID] = i
			continue
		}
		if a.ApplicationNumber > apps[j].ApplicationNumber {
			latest[a.ProjectID] = i
		}
	}
	out := make([]margin.BillingApplication, 0, len(order))
	for _, id := range order {
		out = append(out, apps[latest[id]])
	}
	return out, nil
}

// LatestBillingLineItems keeps the items of each project's highest
// application number among its line items.
func (r memReader) LatestBillingLineItems(ctx context.Context, f margin.Filter) ([]margin.BillingLineItem, error) {
	items, err := r.BillingLineItems(ctx, f)
	if err != nil {
		return nil, err
	}
	maxApp := make(map[margin.ProjectID]int)
	for _, it := range items {
		if n, ok := maxApp[it.ProjectID]; !ok || it.ApplicationNumber > n {
			maxApp[it.ProjectID] = it.ApplicationNumber
		}
	}
	out := make([]margin.BillingLineItem, 0, len(items))
	for _, it := range items {
		if it.ApplicationNumber == maxApp[it.ProjectID] {
			out = append(out, it)
		}
	}
	return out, nil
}
