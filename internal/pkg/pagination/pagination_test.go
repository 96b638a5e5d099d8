package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	page, limit := Normalize(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultLimit, limit)

	page, limit = Normalize(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxLimit, limit)

	assert.Equal(t, 40, Offset(3, 20))
}

func TestNew(t *testing.T) {
	p := New(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = New(1, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)

	p = New(3, 10, 30)
	assert.False(t, p.HasNext)
}
