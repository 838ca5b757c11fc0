package lockstep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/types"
)

func TestTickCounter_Advance(t *testing.T) {
	c := NewTickCounter(1)
	require.NoError(t, c.Advance(types.Batch{Tick: 1}))
	require.NoError(t, c.Advance(types.Batch{Tick: 2}))
	assert.Equal(t, uint64(2), c.Current())

	err := c.Advance(types.Batch{Tick: 4})
	var desync *DesynchronizationError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, uint64(3), desync.Expected)
	assert.Equal(t, uint64(4), desync.Got)
	assert.True(t, IsDesynchronization(err))
}

func TestTickCounter_ZeroValueAdoptsFirstTick(t *testing.T) {
	var c TickCounter
	assert.Equal(t, uint64(0), c.Current())
	require.NoError(t, c.Advance(types.Batch{Tick: 40}))
	require.NoError(t, c.Advance(types.Batch{Tick: 41}))
	assert.Error(t, c.Advance(types.Batch{Tick: 41}), "a repeated tick is a desync")
}
