package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Clamps(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit, Offset: 0}, New(0, 0))
	assert.Equal(t, Params{Page: 3, Limit: MaxLimit, Offset: 200}, New(3, 500))
}

func TestMeta(t *testing.T) {
	m := New(2, 10).Meta(25)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	m = New(1, 10).Meta(0)
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasNext)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, Slice(items, New(2, 2)))
	assert.Equal(t, []int{5}, Slice(items, New(3, 2)))
	assert.Empty(t, Slice(items, New(4, 2)))
}
