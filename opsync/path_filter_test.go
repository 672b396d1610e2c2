package opsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestJoinPath(t *testing.T) {
	assert.Equal(t, JoinPath("", "A"), "A")
	assert.Equal(t, JoinPath("A", ""), "A")
	assert.Equal(t, JoinPath("A", "B"), "A.B")
	assert.Equal(t, JoinPath("A.B", "C"), "A.B.C")
}

func TestPathFilter(t *testing.T) {
	filter := NewPathFilter("A.B", " C. ", "")
	assert.Equal(t, filter.Paths(), []string{"A.B", "C"})

	assert.Equal(t, filter.Allows(""), true)
	assert.Equal(t, filter.Allows("A"), true)
	assert.Equal(t, filter.Allows("A.B"), true)
	assert.Equal(t, filter.Allows("C"), true)
	// nothing below a filter path
	assert.Equal(t, filter.Allows("A.B.X"), false)
	assert.Equal(t, filter.Allows("C.D"), false)
	assert.Equal(t, filter.Allows("A.C"), false)
	assert.Equal(t, filter.Allows("D"), false)
	// segments, not string prefixes
	assert.Equal(t, filter.Allows("A.BB"), false)
	assert.Equal(t, filter.Allows("CC"), false)

	names, all := filter.Names("")
	assert.Equal(t, all, false)
	assert.Equal(t, names, map[string]bool{"A": true, "C": true})

	names, all = filter.Names("A")
	assert.Equal(t, all, false)
	assert.Equal(t, names, map[string]bool{"B": true})

	// a filter path prunes to an empty set at its own depth
	names, all = filter.Names("A.B")
	assert.Equal(t, all, false)
	assert.Equal(t, len(names), 0)

	names, all = filter.Names("C")
	assert.Equal(t, all, false)
	assert.Equal(t, len(names), 0)

	names, all = filter.Names("D")
	assert.Equal(t, all, false)
	assert.Equal(t, len(names), 0)
}

func TestPathFilterRebase(t *testing.T) {
	filter := NewPathFilter("A.B.C", "A.D", "E")

	rebased := filter.Rebase("A", "X")
	assert.Equal(t, rebased.Paths(), []string{"X.B.C", "X.D"})

	rebased = filter.Rebase("A.B", "")
	assert.Equal(t, rebased.Paths(), []string{"C"})

	// an exact path stays exact
	rebased = filter.Rebase("E", "X")
	assert.Equal(t, rebased.Paths(), []string{"X"})
	assert.Equal(t, rebased.Allows("X"), true)
	names, all := rebased.Names("X")
	assert.Equal(t, all, false)
	assert.Equal(t, len(names), 0)

	rebased = filter.Rebase("F", "X")
	assert.Equal(t, rebased.Paths(), []string{})
	assert.Equal(t, rebased.Allows("X"), false)
}

func TestPathFilterNil(t *testing.T) {
	var filter *PathFilter

	assert.Equal(t, filter.Paths() == nil, true)
	assert.Equal(t, filter.Allows("A.B"), true)

	_, all := filter.Names("A")
	assert.Equal(t, all, true)

	assert.Equal(t, filter.Rebase("A", "X") == nil, true)
}
