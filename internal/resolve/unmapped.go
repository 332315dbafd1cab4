package resolve

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Unmapped returns the distinct raw buyer entities of a tenant for which
// no rule's pattern is an exact or substring match. This seeds the
// operator's manual-mapping workflow.
func (r *Resolver) Unmapped(ctx context.Context, tenantID string) ([]string, error) {
	buyers, err := r.store.DistinctBuyerEntities(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: distinct buyer entities")
	}

	rules, err := r.store.ListMappings(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list mappings")
	}

	patterns := make([]string, 0, len(rules))
	for _, rule := range rules {
		if p := strings.ToLower(strings.TrimSpace(rule.SourcePattern)); p != "" {
			patterns = append(patterns, p)
		}
	}

	var unmapped []string
	for _, buyer := range buyers {
		if buyer == "" {
			continue
		}
		folded := strings.ToLower(buyer)
		matched := false
		for _, p := range patterns {
			if folded == p || strings.Contains(folded, p) {
				matched = true
				break
			}
		}
		if !matched {
			unmapped = append(unmapped, buyer)
		}
	}

	sort.Strings(unmapped)
	return unmapped, nil
}
