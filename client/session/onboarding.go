package session

import (
	"context"

	"mechanicapp/client/kv"
)

// Onboarding tracks whether the intro flow has been completed on this device.
type Onboarding struct {
	kv kv.Store
}

func NewOnboarding(store kv.Store) *Onboarding {
	return &Onboarding{kv: store}
}

// Completed reports the stored flag; read failures count as not completed.
func (o *Onboarding) Completed(ctx context.Context) bool {
	v, err := o.kv.Get(ctx, onboardingKey)
	if err != nil {
		return false
	}
	return v == "true"
}

func (o *Onboarding) Complete(ctx context.Context) error {
	return o.kv.Set(ctx, onboardingKey, "true")
}
