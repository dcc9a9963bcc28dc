package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShuffleDeterministic(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6, 7, 8}
	b := []int{1, 2, 3, 4, 5, 6, 7, 8}

	Shuffle(a, 42)
	Shuffle(b, 42)

	assert.Equal(t, a, b, "same seed must produce the same order")
}

func TestShuffleDifferentSeeds(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	Shuffle(a, 1)
	Shuffle(b, 2)

	assert.NotEqual(t, a, b, "different seeds should explore different orders")
}

func TestShufflePreservesElements(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	Shuffle(items, 7)

	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, items)
}

func TestShuffleSmallSlices(t *testing.T) {
	empty := []int{}
	Shuffle(empty, 3)
	assert.Empty(t, empty)

	single := []int{9}
	Shuffle(single, 3)
	assert.Equal(t, []int{9}, single)
}
