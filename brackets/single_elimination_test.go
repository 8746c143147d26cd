package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/playoff-scoring/models"
)

func TestLineMath(t *testing.T) {
	tests := []struct {
		line, sibling, winner int
	}{
		{1, 2, 1},
		{2, 1, 1},
		{3, 4, 2},
		{4, 3, 2},
		{7, 8, 4},
		{8, 7, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.sibling, SiblingLine(tt.line), "sibling of %d", tt.line)
		assert.Equal(t, tt.winner, WinnerLine(tt.line), "winner of %d", tt.line)
	}
}

func TestThirdPlaceLine(t *testing.T) {
	assert.Equal(t, 3, ThirdPlaceLine(1))
	assert.Equal(t, 3, ThirdPlaceLine(2))
	assert.Equal(t, 4, ThirdPlaceLine(3))
	assert.Equal(t, 4, ThirdPlaceLine(4))
}

func TestLayout(t *testing.T) {
	l, err := NewLayout(models.PlayoffBracket{Name: "A", FirstRunNumber: 4, FirstRoundSize: 8, ThirdPlace: true})
	require.NoError(t, err)

	assert.Equal(t, 3, l.NumRounds())
	assert.Equal(t, 6, l.FinalRun())
	semi, ok := l.SemifinalRun()
	require.True(t, ok)
	assert.Equal(t, 5, semi)
	assert.True(t, l.IsSemifinal(5))
	assert.False(t, l.IsSemifinal(4))
	assert.Equal(t, 7, l.ResultRun())

	for run, want := range map[int]int{4: 8, 5: 4, 6: 4, 7: 2} {
		n, err := l.LinesInRun(run)
		require.NoError(t, err)
		assert.Equal(t, want, n, "run %d", run)
	}
	assert.Len(t, l.Slots(), 18)

	assert.NoError(t, l.ValidateMatchSlot(6, 4))
	assert.ErrorIs(t, l.ValidateMatchSlot(7, 1), ErrMalformedRound)
	assert.ErrorIs(t, l.ValidateMatchSlot(5, 5), ErrMalformedRound)
	assert.ErrorIs(t, l.ValidateMatchSlot(3, 1), ErrMalformedRound)
}

func TestLayoutWithoutThirdPlace(t *testing.T) {
	l, err := NewLayout(models.PlayoffBracket{Name: "B", FirstRunNumber: 1, FirstRoundSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, l.FinalRun())
	assert.False(t, l.IsSemifinal(1))
	n, err := l.LinesInRun(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = l.LinesInRun(3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLayoutTwoTeams(t *testing.T) {
	l, err := NewLayout(models.PlayoffBracket{Name: "C", FirstRunNumber: 2, FirstRoundSize: 2, ThirdPlace: true})
	require.NoError(t, err)
	assert.False(t, l.ThirdPlace, "third place needs a semifinal")
	_, ok := l.SemifinalRun()
	assert.False(t, ok)
	assert.Equal(t, 2, l.FinalRun())
}

func TestNewLayoutRejectsMalformed(t *testing.T) {
	for _, size := range []int{0, 1, 3, 6, 12} {
		_, err := NewLayout(models.PlayoffBracket{Name: "X", FirstRunNumber: 1, FirstRoundSize: size})
		assert.ErrorIs(t, err, ErrMalformedRound, "size %d", size)
	}
	_, err := NewLayout(models.PlayoffBracket{Name: "X", FirstRunNumber: 0, FirstRoundSize: 4})
	assert.ErrorIs(t, err, ErrMalformedRound)
}
