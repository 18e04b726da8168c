// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package dataaccess

import (
	"context"
	"fmt"
	"sync"

	"github.com/cobaltcore-dev/placement-resolver/internal/db"
)

// ResourceClassCache implements placement.ResourceClassCache by loading the
// full resource_classes table once and keeping it in memory. Resource
// classes change rarely enough in a real deployment that a process-wide,
// manually-refreshed cache is preferable to a query per lookup.
type ResourceClassCache struct {
	mu       sync.RWMutex
	nameByID map[int64]string
	idByName map[string]int64
}

// NewResourceClassCache builds an empty cache; call Refresh before use.
func NewResourceClassCache() *ResourceClassCache {
	return &ResourceClassCache{
		nameByID: make(map[int64]string),
		idByName: make(map[string]int64),
	}
}

// Refresh reloads the cache from the database.
func (c *ResourceClassCache) Refresh(ctx context.Context, d db.DB) error {
	_ = ctx
	var rows []ResourceClassRow
	if _, err := d.Select(&rows, "SELECT id, name FROM resource_classes"); err != nil {
		return fmt.Errorf("loading resource classes: %w", err)
	}
	nameByID := make(map[int64]string, len(rows))
	idByName := make(map[string]int64, len(rows))
	for _, r := range rows {
		nameByID[r.ID] = r.Name
		idByName[r.Name] = r.ID
	}
	c.mu.Lock()
	c.nameByID = nameByID
	c.idByName = idByName
	c.mu.Unlock()
	return nil
}

// NameFromID implements placement.ResourceClassCache.
func (c *ResourceClassCache) NameFromID(id int64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nameByID[id]
}

// IDFromName implements placement.ResourceClassCache.
func (c *ResourceClassCache) IDFromName(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.idByName[name]
	return id, ok
}
