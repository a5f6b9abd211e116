package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggle(t *testing.T) {
	s := New[string]()
	s.Reload([]string{"a", "b", "c"})

	s.Toggle("a")
	assert.True(t, s.Has("a"))
	assert.Equal(t, 1, s.Count())

	s.Toggle("a")
	assert.False(t, s.Has("a"))
	assert.Equal(t, 0, s.Count())
}

func TestToggleIgnoresOffPageIDs(t *testing.T) {
	s := New[string]()
	s.Reload([]string{"a", "b"})

	s.Toggle("z")
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.Has("z"))
}

func TestSelectAllTogglesWhenFullySelected(t *testing.T) {
	s := New[int64]()
	s.Reload([]int64{1, 2, 3})

	s.SelectAll()
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []int64{1, 2, 3}, s.IDs())

	// A second select-all on a fully selected page acts as deselect-all.
	s.SelectAll()
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.IDs())
}

func TestSelectAllCompletesPartialSelection(t *testing.T) {
	s := New[int64]()
	s.Reload([]int64{1, 2, 3})

	s.Toggle(2)
	s.SelectAll()
	assert.Equal(t, []int64{1, 2, 3}, s.IDs())
}

func TestSelectAllOnEmptyPage(t *testing.T) {
	s := New[string]()
	s.Reload(nil)

	s.SelectAll()
	assert.Equal(t, 0, s.Count())
}

func TestReloadClearsSelection(t *testing.T) {
	s := New[string]()
	s.Reload([]string{"a", "b"})
	s.SelectAll()

	s.Reload([]string{"b", "c"})
	assert.Equal(t, 0, s.Count())

	// Old page IDs are no longer toggleable.
	s.Toggle("a")
	assert.False(t, s.Has("a"))
	s.Toggle("c")
	assert.True(t, s.Has("c"))
}

func TestClear(t *testing.T) {
	s := New[string]()
	s.Reload([]string{"a", "b"})
	s.SelectAll()

	s.Clear()
	assert.Equal(t, 0, s.Count())

	// Page scope survives a clear.
	s.Toggle("a")
	assert.True(t, s.Has("a"))
}

func TestIDsReturnsPageOrder(t *testing.T) {
	s := New[string]()
	s.Reload([]string{"c", "a", "b"})

	s.Toggle("b")
	s.Toggle("c")
	assert.Equal(t, []string{"c", "b"}, s.IDs())
}

func TestZeroValueUsable(t *testing.T) {
	var s Set[string]
	s.Toggle("a")
	assert.Equal(t, 0, s.Count())
	s.SelectAll()
	assert.Empty(t, s.IDs())
}
