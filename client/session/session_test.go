package session

import (
	"context"
	"errors"
	"testing"

	"mechanicapp/client/kv"
	"mechanicapp/client/model"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (failingKV) Set(context.Context, string, string) error    { return errors.New("disk gone") }
func (failingKV) Delete(context.Context, string) error         { return errors.New("disk gone") }

func TestSetAuthPersistsAndHydrates(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	s := NewStore(store, nil)
	if err := s.SetAuth(ctx, model.User{ID: "u1", Role: model.RoleUser}, "tok"); err != nil {
		t.Fatalf("set auth: %v", err)
	}

	restored := NewStore(store, nil)
	if restored.Hydrated() {
		t.Fatal("store should not be hydrated before Hydrate")
	}
	restored.Hydrate(ctx)
	if !restored.Hydrated() || !restored.IsAuthenticated() {
		t.Fatal("expected hydrated authenticated store")
	}
	if restored.Token() != "tok" || restored.UserID() != "u1" {
		t.Fatalf("unexpected restored session %q %q", restored.Token(), restored.UserID())
	}
}

func TestHydrateIgnoresBadState(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed", "{oops"},
		{"missing token", `{"user":{"id":"u1"}}`},
		{"missing user", `{"token":"t"}`},
		{"explicitly signed out", `{"user":{"id":"u1"},"token":"t","isAuthenticated":false}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := kv.NewMemory()
			_ = store.Set(context.Background(), authKey, tc.raw)
			s := NewStore(store, nil)
			s.Hydrate(context.Background())
			if !s.Hydrated() {
				t.Fatal("expected hydrated")
			}
			if s.IsAuthenticated() {
				t.Fatal("expected signed out")
			}
		})
	}
}

func TestHydrateReadFailure(t *testing.T) {
	s := NewStore(failingKV{}, nil)
	s.Hydrate(context.Background())
	if !s.Hydrated() || s.IsAuthenticated() {
		t.Fatal("read failure should leave a hydrated, signed out store")
	}
}

func TestLogoutRunsHooksOnce(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s := NewStore(store, nil)
	_ = s.SetAuth(ctx, model.User{ID: "u1"}, "tok")

	calls := 0
	s.OnLogout(func() { calls++ })

	if !s.Logout(ctx) {
		t.Fatal("first logout should report teardown")
	}
	if s.Logout(ctx) {
		t.Fatal("second logout should be a no-op")
	}
	if calls != 1 {
		t.Fatalf("expected hook once, got %d", calls)
	}
	if _, err := store.Get(ctx, authKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected persisted session removed, got %v", err)
	}
	if s.Token() != "" {
		t.Fatal("token should be cleared")
	}
}

func TestOnboarding(t *testing.T) {
	ctx := context.Background()
	o := NewOnboarding(kv.NewMemory())
	if o.Completed(ctx) {
		t.Fatal("fresh device should not have completed onboarding")
	}
	if err := o.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	if !o.Completed(ctx) {
		t.Fatal("expected onboarding completed")
	}
	if NewOnboarding(failingKV{}).Completed(ctx) {
		t.Fatal("read failure should count as not completed")
	}
}
