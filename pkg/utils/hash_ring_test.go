package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHashRing_AddAndGet(t *testing.T) {
	ring := NewHashRing(128)

	assert.Equal(t, "", ring.Get("guild1"), "empty ring returns empty string")

	ring.Add("node-1", 1)
	ring.Add("node-2", 1)
	ring.Add("node-3", 1)

	assert.Equal(t, []string{"node-1", "node-2", "node-3"}, ring.Nodes())
	assert.Equal(t, 3*128, ring.Size())

	node := ring.Get("guild1")
	assert.NotEmpty(t, node)
	assert.Equal(t, node, ring.Get("guild1"), "same guild must always route to the same node")
}

func TestHashRing_Remove(t *testing.T) {
	ring := NewHashRing(64)
	ring.Add("node-1", 1)
	ring.Add("node-2", 1)

	ring.Remove("node-1")

	assert.Equal(t, []string{"node-2"}, ring.Nodes())
	assert.Equal(t, 64, ring.Size())
	assert.Equal(t, "node-2", ring.Get("guild1"))

	// Removing an unknown node is a no-op
	ring.Remove("node-x")
	assert.Equal(t, 64, ring.Size())
}

func TestHashRing_WeightAffectsVirtualNodes(t *testing.T) {
	ring := NewHashRing(100)
	ring.Add("node-1", 1)
	ring.Add("node-2", 3)

	assert.Equal(t, 100+300, ring.Size())

	// Re-adding with a new weight rebuilds the virtual nodes
	ring.Add("node-2", 1)
	assert.Equal(t, 200, ring.Size())
}

func TestHashRing_DistributionRoughlyEven(t *testing.T) {
	ring := NewHashRing(150)
	for i := range 4 {
		ring.Add(fmt.Sprintf("node-%d", i), 1)
	}

	const keys = 4000
	counts := make(map[string]int)
	for i := range keys {
		counts[ring.Get(fmt.Sprintf("guild_%d", i))]++
	}

	assert.Len(t, counts, 4, "all nodes should receive traffic")
	expected := float64(keys) / 4
	for node, count := range counts {
		diff := float64(count) - expected
		if diff < 0 {
			diff = -diff
		}
		assert.Less(t, diff, expected*0.5, "node %s has skewed share: %d", node, count)
	}
}

// TestProperty_HashRingRouting checks that routing stays deterministic and
// that removing a node only remaps the guilds that were on it.
func TestProperty_HashRingRouting(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		replicas := rapid.IntRange(50, 150).Draw(rt, "replicas")
		ring := NewHashRing(replicas)

		numNodes := rapid.IntRange(2, 8).Draw(rt, "numNodes")
		for i := range numNodes {
			weight := rapid.IntRange(1, 3).Draw(rt, fmt.Sprintf("weight_%d", i))
			ring.Add(fmt.Sprintf("node_%d", i), weight)
		}

		numKeys := rapid.IntRange(20, 200).Draw(rt, "numKeys")
		mapping := make(map[string]string, numKeys)
		for i := range numKeys {
			key := fmt.Sprintf("guild_%d", i)
			node := ring.Get(key)
			if node == "" {
				rt.Fatalf("non-empty ring returned empty node for %s", key)
			}
			if ring.Get(key) != node {
				rt.Fatalf("routing for %s is not deterministic", key)
			}
			mapping[key] = node
		}

		// Remove one node: keys on other nodes must not move
		removed := "node_0"
		ring.Remove(removed)
		for key, node := range mapping {
			if node == removed {
				continue
			}
			if got := ring.Get(key); got != node {
				rt.Fatalf("key %s moved from %s to %s although %s was removed", key, node, got, removed)
			}
		}
	})
}
