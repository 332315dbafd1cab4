package resolve

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tendersync/internal/model"
)

// MappingStore is the read surface the resolver needs.
type MappingStore interface {
	ListMappings(ctx context.Context, tenantID string) ([]model.DepartmentMapping, error)
	DistinctBuyerEntities(ctx context.Context, tenantID string) ([]string, error)
}

// Resolver resolves raw buyer entities against a tenant's mapping rules.
// It is read-only relative to the sync pipeline: invoked at query time, so
// newly added rules retroactively reclassify already-ingested rows without
// a re-sync.
type Resolver struct {
	store MappingStore
	chain []Strategy
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrategies appends extra strategies after the default exact →
// contains chain. The priority contract is positional: earlier strategies
// always win.
func WithStrategies(extra ...Strategy) ResolverOption {
	return func(r *Resolver) {
		r.chain = append(r.chain, extra...)
	}
}

// NewResolver creates a Resolver with the default exact → contains chain.
func NewResolver(store MappingStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store: store,
		chain: []Strategy{ExactStrategy{}, ContainsStrategy{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the best-matching canonical department for a raw buyer
// entity, or nil when nothing matches. Rules are evaluated strategy by
// strategy in priority order; within a strategy the store's rule order
// applies. Unapproved rules still match; Approved is surfaced for the
// caller's display policy.
func (r *Resolver) Resolve(ctx context.Context, tenantID, rawBuyerEntity string) (*model.Resolution, error) {
	if rawBuyerEntity == "" {
		return nil, nil
	}

	rules, err := r.store.ListMappings(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list mappings")
	}

	return r.resolveAgainst(rawBuyerEntity, rules), nil
}

// ResolveAll resolves a set of raw buyer entities with a single rule load.
// The read surface uses this to annotate opportunity listings per row.
func (r *Resolver) ResolveAll(ctx context.Context, tenantID string, raws []string) (map[string]*model.Resolution, error) {
	rules, err := r.store.ListMappings(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list mappings")
	}

	out := make(map[string]*model.Resolution, len(raws))
	for _, raw := range raws {
		if raw == "" {
			continue
		}
		if res := r.resolveAgainst(raw, rules); res != nil {
			out[raw] = res
		}
	}
	return out, nil
}

func (r *Resolver) resolveAgainst(raw string, rules []model.DepartmentMapping) *model.Resolution {
	for _, strategy := range r.chain {
		for _, rule := range rules {
			if rule.MatchType != strategy.Type() {
				continue
			}
			if strategy.Match(raw, rule) {
				return &model.Resolution{
					Department: rule.Department,
					Agency:     rule.Agency,
					Confidence: rule.Confidence,
					Approved:   rule.Approved,
				}
			}
		}
	}
	return nil
}
