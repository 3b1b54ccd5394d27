package plan

import (
	"context"
	"sync"
)

type memorySource struct {
	mu    sync.RWMutex
	plans map[Type]Plan
}

// NewMemorySource returns a Source over a deep copy of plans.
func NewMemorySource(plans map[Type]Plan) Source {
	cp := make(map[Type]Plan, len(plans))
	for t, p := range plans {
		cp[t] = p.clone()
	}
	return &memorySource{plans: cp}
}

func (s *memorySource) Load(context.Context) (map[Type]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make(map[Type]Plan, len(s.plans))
	for t, p := range s.plans {
		cp[t] = p.clone()
	}
	return cp, nil
}

// DefaultPlans returns the built-in plan table.
func DefaultPlans() map[Type]Plan {
	return map[Type]Plan{
		TypeTrial: {
			Type: TypeTrial,
			Name: "Trial",
			Limits: map[Resource]int64{
				ResourceCustomers: 50,
				ResourceWorkers:   2,
				ResourceProducts:  20,
				ResourceLocations: 1,
			},
			Features: []Feature{FeatureQueueBasic, FeatureInventory},
		},
		TypeStarter: {
			Type: TypeStarter,
			Name: "Starter",
			Limits: map[Resource]int64{
				ResourceCustomers: 100,
				ResourceWorkers:   3,
				ResourceProducts:  50,
				ResourceLocations: 1,
			},
			Features: []Feature{FeatureQueueBasic, FeatureInventory, FeaturePaymentProcessing},
		},
		TypeProfessional: {
			Type: TypeProfessional,
			Name: "Professional",
			Limits: map[Resource]int64{
				ResourceCustomers: 1000,
				ResourceWorkers:   10,
				ResourceProducts:  500,
				ResourceLocations: 3,
			},
			Features: []Feature{
				FeatureQueueBasic, FeatureQueuePriority, FeatureInventory,
				FeaturePaymentProcessing, FeatureAnalytics, FeatureMultiLocation,
				FeatureIntegrations,
			},
		},
		TypeEnterprise: {
			Type: TypeEnterprise,
			Name: "Enterprise",
			Limits: map[Resource]int64{
				ResourceCustomers: Unlimited,
				ResourceWorkers:   Unlimited,
				ResourceProducts:  Unlimited,
				ResourceLocations: Unlimited,
			},
			Features: []Feature{
				FeatureQueueBasic, FeatureQueuePriority, FeatureQueueAdvanced,
				FeatureInventory, FeaturePaymentProcessing, FeatureAnalytics,
				FeatureMultiLocation, FeatureIntegrations, FeatureAPIAccess,
				FeatureWhiteLabel,
			},
		},
	}
}
