// source_test.go
package kslang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceNames(t *testing.T) {
	assert.Equal(t, "<stdin>", NewStdinSource("x").Name())
	assert.Equal(t, "<string>", NewStringSource("x").Name())
	assert.Equal(t, "a/b.ks", NewFileSource("a/b.ks", "x").Name())
}

func TestRegistryStableIDs(t *testing.T) {
	reg := NewSourceRegistry()
	a := reg.Add(NewStringSource("aaa"))
	b := reg.Add(NewStringSource("bbb"))
	require.Equal(t, 0, a)
	require.Equal(t, 1, b)
	require.Equal(t, 2, reg.Len())
	assert.Equal(t, "aaa", reg.Get(a).Text)
	assert.Equal(t, "bbb", reg.Get(b).Text)
}

func TestRegistryText(t *testing.T) {
	reg := NewSourceRegistry()
	id := reg.Add(NewStringSource("hello world"))
	sp := CodeSpan{SrcID: id, Start: 6, End: 11}
	assert.Equal(t, "world", reg.Text(sp))
}

func TestRegistryPanicsOnBadSpan(t *testing.T) {
	reg := NewSourceRegistry()
	id := reg.Add(NewStringSource("hi"))
	assert.Panics(t, func() { reg.Get(99) })
	assert.Panics(t, func() { reg.Text(CodeSpan{SrcID: id, Start: 0, End: 10}) })
}

func TestSpanMerge(t *testing.T) {
	a := CodeSpan{Line: 1, Start: 2, End: 5}
	b := CodeSpan{Line: 3, Start: 8, End: 12}
	m := a.Merge(b)
	assert.Equal(t, 1, m.Line, "merge keeps the opening line")
	assert.Equal(t, 2, m.Start)
	assert.Equal(t, 12, m.End)
}

func TestSpanContains(t *testing.T) {
	outer := CodeSpan{Start: 0, End: 10}
	assert.True(t, outer.Contains(CodeSpan{Start: 2, End: 8}))
	assert.True(t, outer.Contains(outer))
	assert.False(t, outer.Contains(CodeSpan{Start: 2, End: 11}))
	assert.False(t, outer.Contains(CodeSpan{SrcID: 1, Start: 2, End: 8}), "different sources never contain each other")
}

func TestSpanString(t *testing.T) {
	assert.Equal(t, "2:4..9", CodeSpan{Line: 2, Start: 4, End: 9}.String())
}
