package store

import (
	"context"
	"testing"
)

func TestCreateSubscription(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))
	ctx := context.Background()

	sub, err := ps.CreateSubscription(ctx, "https://push.example.com/sub1", "p256dh_key1", "auth_key1", "Chrome Desktop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q, want %q", sub.Endpoint, "https://push.example.com/sub1")
	}
	if sub.DeviceName != "Chrome Desktop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Chrome Desktop")
	}
}

func TestCreateSubscriptionUpsert(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))
	ctx := context.Background()

	first, _ := ps.CreateSubscription(ctx, "https://push.example.com/sub1", "old", "old", "Phone")
	second, err := ps.CreateSubscription(ctx, "https://push.example.com/sub1", "new", "new", "Phone (renamed)")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.P256dhKey != "new" || second.DeviceName != "Phone (renamed)" {
		t.Errorf("subscription not refreshed: %+v", second)
	}

	subs, _ := ps.List(ctx)
	if len(subs) != 1 {
		t.Errorf("len = %d, want 1", len(subs))
	}
}

func TestDeleteSubscription(t *testing.T) {
	ps := NewPushStore(setupTestDB(t))
	ctx := context.Background()

	a, _ := ps.CreateSubscription(ctx, "https://push.example.com/a", "k", "a", "A")
	ps.CreateSubscription(ctx, "https://push.example.com/b", "k", "a", "B")

	if err := ps.DeleteSubscription(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := ps.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.example.com/b"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ := ps.List(ctx)
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}
