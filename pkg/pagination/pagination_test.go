package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{At: time.Date(2024, 1, 6, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	require.NoError(t, err)
	require.True(t, want.At.Equal(got.At))
	require.Equal(t, want.ID, got.ID)
}

func TestParseCursorEdges(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = ParseCursor("not base64!")
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrimEmitsCursorOnlyWhenMoreRows(t *testing.T) {
	cursorOf := func(n int) Cursor {
		return Cursor{At: time.Unix(int64(n), 0).UTC(), ID: uuid.Nil}
	}

	page := Trim([]int{1, 2}, 2, cursorOf)
	require.Equal(t, []int{1, 2}, page.Items)
	require.Empty(t, page.NextCursor)

	page = Trim([]int{1, 2, 3}, 2, cursorOf)
	require.Equal(t, []int{1, 2}, page.Items)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	require.Equal(t, int64(2), next.At.Unix())
}
