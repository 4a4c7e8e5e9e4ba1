package entropy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/relief-mobility/internal/entropy"
)

func TestForAgent_Deterministic(t *testing.T) {
	a := entropy.ForAgent(1, 3)
	b := entropy.ForAgent(1, 3)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float(), b.Float())
	}
}

func TestForAgent_IndependentStreams(t *testing.T) {
	a := entropy.ForAgent(1, 0)
	b := entropy.ForAgent(1, 1)
	same := 0
	for i := 0; i < 50; i++ {
		if a.Float() == b.Float() {
			same++
		}
	}
	assert.Less(t, same, 50)
}

func TestBetweenAndIntn(t *testing.T) {
	s := entropy.NewSource(9)
	for i := 0; i < 1000; i++ {
		v := s.Between(2, 5)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 5.0)
		assert.Less(t, s.Intn(4), 4)
	}
	assert.Equal(t, 0, s.Intn(0))
	v := s.Between(5, 2)
	assert.GreaterOrEqual(t, v, 2.0)
}

func TestRandomSeed_NonNegative(t *testing.T) {
	assert.GreaterOrEqual(t, entropy.RandomSeed(), int64(0))
}
