package overrides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftReportsWholeSetOnSave(t *testing.T) {
	var saved map[string]Fields
	calls := 0
	draft := NewDraft(func(set map[string]Fields) {
		calls++
		saved = set
	})

	draft.Set("p1", Fields{MaxPurchase: ptr(2)})
	draft.Set("p2", Fields{})
	draft.Remove("p2")
	require.NoError(t, draft.Save())

	assert.Equal(t, 1, calls)
	require.Len(t, saved, 1)
	assert.Equal(t, 2, *saved["p1"].MaxPurchase)

	saved["p9"] = Fields{}
	assert.Len(t, draft.List(), 1, "callback receives a copy")
}

func TestDraftSaveRejectsInvalidSet(t *testing.T) {
	called := false
	draft := NewDraft(func(map[string]Fields) { called = true })
	draft.Set("p1", Fields{MinPurchase: ptr(4), MaxPurchase: ptr(1)})

	require.Error(t, draft.Save())
	assert.False(t, called)
}

func TestDraftSaveRejectsPaddedProductIDs(t *testing.T) {
	var saved map[string]Fields
	draft := NewDraft(func(set map[string]Fields) { saved = set })
	draft.Set("p1", Fields{MaxPurchase: ptr(2)})
	draft.Set(" p1", Fields{MaxPurchase: ptr(5)})

	require.Error(t, draft.Save())
	assert.Nil(t, saved)
	assert.Len(t, draft.List(), 2, "distinct keys are never merged")
}
