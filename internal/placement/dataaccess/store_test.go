// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package dataaccess

import (
	"context"
	"testing"

	dbtesting "github.com/cobaltcore-dev/placement-resolver/internal/db/testing"
)

func setupStore(t *testing.T) *GorpStore {
	t.Helper()
	env := dbtesting.Setup(t)
	if err := CreateTables(env.DB); err != nil {
		t.Fatalf("creating tables: %v", err)
	}
	return NewGorpStore(env.DB, nil)
}

func TestExistsNestedProvidersReflectsSchema(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	root := ResourceProviderRow{UUID: "11111111-1111-1111-1111-111111111111", RootProviderID: 0}
	if err := store.DB.Insert(&root); err != nil {
		t.Fatalf("inserting root provider: %v", err)
	}
	root.RootProviderID = root.ID
	if _, err := store.DB.Update(&root); err != nil {
		t.Fatalf("updating root provider: %v", err)
	}

	has, err := store.ExistsNestedProviders(ctx)
	if err != nil {
		t.Fatalf("ExistsNestedProviders returned error: %v", err)
	}
	if has {
		t.Fatal("expected no nested providers with only a root registered")
	}

	child := ResourceProviderRow{
		UUID:             "22222222-2222-2222-2222-222222222222",
		RootProviderID:   root.ID,
		ParentProviderID: &root.ID,
	}
	if err := store.DB.Insert(&child); err != nil {
		t.Fatalf("inserting child provider: %v", err)
	}

	has, err = store.ExistsNestedProviders(ctx)
	if err != nil {
		t.Fatalf("ExistsNestedProviders returned error: %v", err)
	}
	if !has {
		t.Fatal("expected a nested provider to be detected once a child is registered")
	}
}

func TestResourceClassCacheRefresh(t *testing.T) {
	store := setupStore(t)

	rc := ResourceClassRow{Name: "VCPU"}
	if err := store.DB.Insert(&rc); err != nil {
		t.Fatalf("inserting resource class: %v", err)
	}

	cache := NewResourceClassCache()
	if err := cache.Refresh(context.Background(), store.DB); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if got := cache.NameFromID(rc.ID); got != "VCPU" {
		t.Fatalf("expected VCPU, got %q", got)
	}
	id, ok := cache.IDFromName("VCPU")
	if !ok || id != rc.ID {
		t.Fatalf("expected IDFromName to resolve back to %d, got %d (ok=%v)", rc.ID, id, ok)
	}
}
