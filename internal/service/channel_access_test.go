package service

import (
	"context"
	"testing"

	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/repository"
)

func TestChannelAccessAllow(t *testing.T) {
	env := setupCheckoutTest(t, checkoutEnvOptions{})
	ctx := context.Background()
	access := NewChannelAccess(repository.NewCartRepository(env.db), repository.NewCatalogRepository(env.db))
	group := enableGroupCart(t, env)
	if _, err := env.groups.Join(ctx, *group.JoinToken, testFriendID); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	cases := []struct {
		userID  uint
		channel string
		want    bool
	}{
		{testOwnerID, events.UserChannel(testOwnerID), true},
		{testOwnerID, events.UserChannel(testFriendID), false},
		{testStoreOwnerID, events.StoreChannel(env.store.ID), true},
		{testOwnerID, events.StoreChannel(env.store.ID), false},
		{testOwnerID, events.CartChannel(group.ID), true},
		{testFriendID, events.CartChannel(group.ID), true},
		{testStoreOwnerID, events.CartChannel(group.ID), false},
		{testOwnerID, events.CartChannel(9999), false},
		{testOwnerID, "store:abc", false},
		{testOwnerID, "orders", false},
		{0, events.UserChannel(0), false},
	}
	for _, tc := range cases {
		got, err := access.Allow(tc.userID, tc.channel)
		if err != nil {
			t.Fatalf("allow %d %s failed: %v", tc.userID, tc.channel, err)
		}
		if got != tc.want {
			t.Fatalf("allow %d %s: expected %v, got %v", tc.userID, tc.channel, tc.want, got)
		}
	}

	if err := env.groups.RemoveParticipant(ctx, testOwnerID, group.ID, testFriendID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if ok, _ := access.Allow(testFriendID, events.CartChannel(group.ID)); ok {
		t.Fatalf("removed participants lose cart channel access")
	}
}
