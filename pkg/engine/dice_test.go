package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource replays a list of die faces (1..6).
type fixedSource struct {
	faces []int
	next  int
}

func (f *fixedSource) IntN(n int) int {
	v := f.faces[f.next%len(f.faces)]
	f.next++
	return (v - 1) % n
}

func TestRollPips(t *testing.T) {
	assert.Equal(t, []int{1, 3}, Roll{3, 1}.Pips().Values())
	assert.Equal(t, []int{5, 5, 5, 5}, Roll{5, 5}.Pips().Values())
	assert.True(t, Roll{2, 2}.IsDouble())
	assert.False(t, Roll{2, 3}.IsDouble())
	assert.False(t, Roll{0, 3}.Valid())
	assert.False(t, Roll{7, 3}.Valid())
	assert.Equal(t, "6-4", Roll{6, 4}.String())
}

func TestPipsMultiset(t *testing.T) {
	p := PipsOf(4, 4, 4, 4)
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, []int{4}, p.Distinct())
	assert.True(t, p.Remove(4))
	assert.Equal(t, 3, p.Count(4))
	assert.False(t, p.Remove(2))

	q := p.Without(4)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3, p.Len(), "Without copies")

	assert.True(t, PipsOf().Empty())
	assert.Equal(t, PipsOf(1, 6), PipsOf(6, 1))
	assert.Equal(t, 0, PipsOf(0, 7).Len(), "out of range values dropped")
	assert.Equal(t, "{1,1,6}", PipsOf(6, 1, 1).String())
	assert.NotEqual(t, PipsOf(1, 2).context(), PipsOf(1, 1, 2).context())
}

func TestDiceBeforeRoll(t *testing.T) {
	d := NewDice(NewRandSource(1))
	_, err := d.Values()
	assert.ErrorIs(t, err, ErrDiceNotRolled)
	assert.ErrorIs(t, err, ErrInvariant)
	_, err = d.IsDouble()
	assert.ErrorIs(t, err, ErrDiceNotRolled)
	_, err = d.Pips()
	assert.ErrorIs(t, err, ErrDiceNotRolled)
	assert.False(t, d.Rolled())
}

func TestDiceRoll(t *testing.T) {
	d := NewDice(&fixedSource{faces: []int{3, 3, 6, 2}})

	r := d.Roll()
	assert.Equal(t, Roll{3, 3}, r)
	double, err := d.IsDouble()
	require.NoError(t, err)
	assert.True(t, double)
	pips, err := d.Pips()
	require.NoError(t, err)
	assert.Equal(t, PipsOf(3, 3, 3, 3), pips)

	assert.Equal(t, Roll{6, 2}, d.Roll())
	d.Reset()
	assert.False(t, d.Rolled())

	assert.ErrorIs(t, d.Set(Roll{0, 1}), ErrInvariant)
	require.NoError(t, d.Set(Roll{5, 1}))
	v, err := d.Values()
	require.NoError(t, err)
	assert.Equal(t, Roll{5, 1}, v)
}

func TestDiceUniform(t *testing.T) {
	d := NewDice(NewRandSource(2024))
	var counts [7]int
	const n = 60000
	for i := 0; i < n; i++ {
		counts[d.Die()]++
	}
	assert.Zero(t, counts[0])
	for face := 1; face <= 6; face++ {
		assert.InDelta(t, n/6, counts[face], n/60, "face %d", face)
	}
}

func TestRandSourceDeterministic(t *testing.T) {
	a, b := NewDice(NewRandSource(7)), NewDice(NewRandSource(7))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Roll(), b.Roll())
	}
}
