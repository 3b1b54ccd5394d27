// Package plan is the static catalog of subscription tiers.
//
// Each tier (trial, starter, professional, enterprise) carries numeric caps
// for countable resources and a set of feature flags. Lookups never fail:
// an unknown tier resolves to the most restrictive paid tier (starter by
// default) and the fallback is logged at WARN.
//
//	catalog := plan.NewDefaultCatalog(plan.WithLogger(log))
//	if !catalog.IsWithinLimit(plan.TypeStarter, plan.ResourceWorkers, 3) {
//	    // the fourth worker is rejected
//	}
//
// The table can be overridden from YAML with NewYAMLFileSource; "unlimited"
// (or -1) marks an uncapped resource.
//
// Caps are exclusive: a tenant holding exactly limit records cannot add another.
package plan
