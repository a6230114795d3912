// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import "testing"

func TestCachePutGet(t *testing.T) {
	c := NewCache()

	if _, _, ok := c.Get("epp", "cpu:0"); ok {
		t.Fatal("empty cache reported a hit")
	}
	epoch := c.Put("epp", "cpu:0", TokenValue("performance"))
	if epoch != 1 {
		t.Errorf("first epoch = %d, want 1", epoch)
	}
	value, gotEpoch, ok := c.Get("epp", "cpu:0")
	if !ok {
		t.Fatal("miss after Put")
	}
	if !value.Equal(TokenValue("performance")) {
		t.Errorf("value = %s, want performance", value)
	}
	if gotEpoch != epoch {
		t.Errorf("epoch = %d, want %d", gotEpoch, epoch)
	}
}

func TestCacheEpochAdvances(t *testing.T) {
	c := NewCache()

	first := c.Put("epb", "cpu:0", IntValue(6))
	second := c.Put("epb", "cpu:1", IntValue(6))
	third := c.Put("epb", "cpu:0", IntValue(8))
	if !(first < second && second < third) {
		t.Errorf("epochs %d, %d, %d are not strictly increasing", first, second, third)
	}
	_, epoch, _ := c.Get("epb", "cpu:0")
	if epoch != third {
		t.Errorf("overwritten entry epoch = %d, want %d", epoch, third)
	}
}

func TestCacheInvalidatePrecise(t *testing.T) {
	c := NewCache()
	c.Put("c1e_autopromote", "package:0", BoolValue(true))
	c.Put("c1e_autopromote", "package:1", BoolValue(true))
	c.Put("turbo", "global", BoolValue(false))

	c.Invalidate("c1e_autopromote", "package:0")

	if _, _, ok := c.Get("c1e_autopromote", "package:0"); ok {
		t.Error("invalidated key still present")
	}
	if _, _, ok := c.Get("c1e_autopromote", "package:1"); !ok {
		t.Error("sibling key was dropped")
	}
	if _, _, ok := c.Get("turbo", "global"); !ok {
		t.Error("unrelated property was dropped")
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestCacheInvalidateAbsentKey(t *testing.T) {
	c := NewCache()
	c.Invalidate("epp", "cpu:5")
	if got := c.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}
