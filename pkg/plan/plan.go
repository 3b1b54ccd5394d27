package plan

import (
	"maps"
	"slices"
)

// Plan holds the caps and feature flags of one tier.
type Plan struct {
	Type     Type
	Name     string
	Limits   map[Resource]int64 // Unlimited (-1) means no cap
	Features []Feature
}

// Limit returns the cap for res. The second result is false when the plan
// does not define the resource at all.
func (p Plan) Limit(res Resource) (int64, bool) {
	limit, ok := p.Limits[res]
	return limit, ok
}

// HasFeature reports whether the plan enables f.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// IsWithinLimit reports whether one more record can be added on top of count.
// Unlimited resources always pass; otherwise count must be strictly below the cap.
// A resource missing from the plan never passes.
func (p Plan) IsWithinLimit(res Resource, count int64) bool {
	limit, ok := p.Limits[res]
	if !ok {
		return false
	}
	if limit == Unlimited {
		return true
	}
	return count < limit
}

func (p Plan) clone() Plan {
	return Plan{
		Type:     p.Type,
		Name:     p.Name,
		Limits:   maps.Clone(p.Limits),
		Features: slices.Clone(p.Features),
	}
}

// Comparison contains the differences between two plans.
type Comparison struct {
	// Features gained in the target plan
	NewFeatures []Feature `json:"new_features"`
	// Features lost from the current plan
	LostFeatures []Feature `json:"lost_features"`
	// Resources with increased caps
	IncreasedLimits map[Resource]LimitChange `json:"increased_limits"`
	// Resources with decreased caps
	DecreasedLimits map[Resource]LimitChange `json:"decreased_limits"`
}

// LimitChange represents a change of one cap.
type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// IsUpgrade reports whether the target plan only adds capabilities.
func (c *Comparison) IsUpgrade() bool {
	return len(c.LostFeatures) == 0 && len(c.DecreasedLimits) == 0 &&
		(len(c.NewFeatures) > 0 || len(c.IncreasedLimits) > 0)
}

// Compare returns the differences between current and target.
func Compare(current, target Plan) *Comparison {
	cmp := &Comparison{
		NewFeatures:     make([]Feature, 0),
		LostFeatures:    make([]Feature, 0),
		IncreasedLimits: make(map[Resource]LimitChange),
		DecreasedLimits: make(map[Resource]LimitChange),
	}

	for _, f := range target.Features {
		if !current.HasFeature(f) {
			cmp.NewFeatures = append(cmp.NewFeatures, f)
		}
	}
	for _, f := range current.Features {
		if !target.HasFeature(f) {
			cmp.LostFeatures = append(cmp.LostFeatures, f)
		}
	}

	for _, res := range Resources {
		from, okFrom := current.Limits[res]
		to, okTo := target.Limits[res]
		if !okFrom {
			from = 0
		}
		if !okTo {
			to = 0
		}
		if from == to {
			continue
		}

		change := LimitChange{From: from, To: to}
		switch {
		case from == Unlimited:
			cmp.DecreasedLimits[res] = change
		case to == Unlimited, to > from:
			cmp.IncreasedLimits[res] = change
		default:
			cmp.DecreasedLimits[res] = change
		}
	}

	return cmp
}
