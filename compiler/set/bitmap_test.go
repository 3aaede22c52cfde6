package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmap(t *testing.T) {
	var s Bitmap

	assert.False(t, s.IsSet(3))
	assert.True(t, s.Mark(3))
	assert.False(t, s.Mark(3))

	s.Set(200)
	s.Set(64)

	assert.True(t, s.IsSet(200))
	assert.Equal(t, 3, s.Size())

	var got []int

	s.Range(func(i int) bool {
		got = append(got, i)
		return true
	})

	assert.Equal(t, []int{3, 64, 200}, got)

	s.Clear(64)
	assert.False(t, s.IsSet(64))

	s.Reset()
	assert.Equal(t, 0, s.Size())
}
