package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTrimsAndEncodesCursor(t *testing.T) {
	items := []int{5, 4, 3}
	page, info := Page(items, 2, func(v int) Cursor { return Cursor{ID: strconv.Itoa(v)} })

	assert.Equal(t, []int{5, 4}, page)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "4", cursor.ID)
}

func TestPageLastPage(t *testing.T) {
	page, info := Page([]int{1}, 2, func(v int) Cursor { return Cursor{} })
	assert.Equal(t, []int{1}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestSizeClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)
}
