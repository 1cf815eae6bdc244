package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total, perPage, want int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{10, 4, 3},
		{12, 4, 3},
		{10, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TotalPages(tc.total, tc.perPage), "total=%d perPage=%d", tc.total, tc.perPage)
	}
}

func TestTotalPagesIsCeiling(t *testing.T) {
	for perPage := 1; perPage <= 7; perPage++ {
		for total := 0; total <= 50; total++ {
			got := TotalPages(total, perPage)
			assert.True(t, got*perPage >= total, "pages must cover the collection")
			assert.True(t, got == 0 || (got-1)*perPage < total, "no empty trailing page")
			assert.Equal(t, total == 0, got == 0)
		}
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1, 4))
	assert.Equal(t, 8, Offset(3, 4))
	assert.Equal(t, 0, Offset(0, 4))
}

func TestNewPager(t *testing.T) {
	p := NewPager(1, 4, 10)
	assert.Equal(t, []int{1, 2, 3}, p.Pages)
	assert.True(t, p.Visible())
	assert.False(t, p.HasPrevious)
	assert.True(t, p.HasNext)
	assert.Equal(t, 1, p.FirstIndex())
	assert.Equal(t, 4, p.LastIndex())

	p = NewPager(3, 4, 10)
	assert.True(t, p.HasPrevious)
	assert.False(t, p.HasNext)
	assert.Equal(t, 9, p.FirstIndex())
	assert.Equal(t, 10, p.LastIndex())

	p = NewPager(1, 4, 0)
	assert.False(t, p.Visible())
	assert.Empty(t, p.Pages)
	assert.False(t, p.HasNext)
	assert.Zero(t, p.FirstIndex())
	assert.Zero(t, p.LastIndex())
}
