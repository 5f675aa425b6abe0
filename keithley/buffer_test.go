package keithley_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbi-div-b/keithley6514/gpib"
	"github.com/mbi-div-b/keithley6514/keithley"
)

func TestBufferEmptySentinel(t *testing.T) {
	t.Parallel()

	d, mock := newTestDevice(t)
	mock.Expect([]gpib.MockR{
		{"TRAC:CLE", ""},
		{"TRAC:POIN 5", ""},
		{"TRAC:FEED SENS", ""},
		{"TRAC:FEED:CONT NEXT", ""},
		{"TRAC:POIN:ACT?", "+0"},
	})

	require.NoError(t, d.ConfigureBuffer(5))
	assert.Equal(t, keithley.BufferArmed, d.BufferStatus())
	assert.Equal(t, 5, d.BufferCapacity())

	vals, err := d.ReadBuffer()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1}, vals, "empty buffer sentinel is exactly [-1,-1]")
	assert.Equal(t, keithley.BufferEmpty, d.BufferStatus())
}

func TestBufferDrainPassthrough(t *testing.T) {
	t.Parallel()

	d, mock := newTestDevice(t)
	mock.Expect([]gpib.MockR{
		{"TRAC:CLE", ""},
		{"TRAC:POIN 5", ""},
		{"TRAC:FEED SENS", ""},
		{"TRAC:FEED:CONT NEXT", ""},
		{"TRAC:POIN:ACT?", "+3"},
		{"TRAC:DATA?", "-1.0E-09,+0.1,-1.1E-09,+0.2,-1.2E-09,+0.3"},
	})

	require.NoError(t, d.ConfigureBuffer(5))
	vals, err := d.ReadBuffer()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.0e-09, 0.1, -1.1e-09, 0.2, -1.2e-09, 0.3}, vals,
		"reading/time-delta pairs pass through unmodified and in order")
	assert.Equal(t, keithley.BufferHasData, d.BufferStatus())
}

func TestBufferCapacityInvalid(t *testing.T) {
	t.Parallel()

	d, mock := newTestDevice(t)
	before := len(mock.Sent())
	for _, n := range []int{0, -3} {
		err := d.ConfigureBuffer(n)
		require.Error(t, err)
		assert.True(t, keithley.IsValidation(err), "capacity=%d got %v", n, err)
	}
	assert.Len(t, mock.Sent(), before, "nothing sent on validation fault")
	assert.Equal(t, keithley.BufferUnconfigured, d.BufferStatus())
}

func TestBufferReadUnconfigured(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t)
	_, err := d.ReadBuffer()
	require.Error(t, err)
	assert.True(t, keithley.IsValidation(err))
}

func TestBufferConfigureFault(t *testing.T) {
	t.Parallel()

	d, mock := newTestDevice(t)
	mock.FailNext(errors.Errorf("bus hung"))
	err := d.ConfigureBuffer(10)
	require.Error(t, err)
	assert.Equal(t, keithley.BufferUnconfigured, d.BufferStatus(),
		"status unspecified after fault, caller must re-arm")

	// re-arm works and drains fine afterwards
	mock.Expect([]gpib.MockR{
		{"TRAC:CLE", ""},
		{"TRAC:POIN 10", ""},
		{"TRAC:FEED SENS", ""},
		{"TRAC:FEED:CONT NEXT", ""},
	})
	require.NoError(t, d.ConfigureBuffer(10))
	assert.Equal(t, keithley.BufferArmed, d.BufferStatus())
}
