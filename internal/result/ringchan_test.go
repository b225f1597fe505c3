package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingChannel(t *testing.T) {
	t.Run("send within capacity", func(t *testing.T) {
		rc := NewRingChannel[int](3)

		assert.False(t, rc.Send(1))
		assert.False(t, rc.Send(2))

		assert.Equal(t, 2, rc.Len())
		assert.Equal(t, 3, rc.Cap())
		assert.Equal(t, Metrics{Written: 2}, rc.GetMetrics())
	})

	t.Run("overwrites oldest when full", func(t *testing.T) {
		rc := NewRingChannel[int](2)
		rc.Send(1)
		rc.Send(2)

		assert.True(t, rc.Send(3), "MUST report a dropped element")

		assert.Equal(t, 2, <-rc.C())
		assert.Equal(t, 3, <-rc.C())
		assert.Equal(t, Metrics{Written: 3, Overwritten: 1}, rc.GetMetrics())
	})

	t.Run("close ends the stream", func(t *testing.T) {
		rc := NewRingChannel[int](1)
		rc.Send(9)
		rc.Close()

		v, ok := <-rc.C()
		assert.True(t, ok)
		assert.Equal(t, 9, v)
		_, ok = <-rc.C()
		assert.False(t, ok)
	})

	t.Run("zero capacity panics", func(t *testing.T) {
		assert.Panics(t, func() { NewRingChannel[int](0) })
	})
}
