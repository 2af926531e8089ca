package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePermalink(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already clean", "http://ex.com/a", "http://ex.com/a"},
		{"trailing space", "http://ex.com/a ", "http://ex.com/a"},
		{"tabs and newlines", "\t http://ex.com/a\n", "http://ex.com/a"},
		{"inner space kept", "http://ex.com/a b", "http://ex.com/a b"},
		{"blank", "   ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePermalink(tt.raw))
		})
	}
}

func TestNewBlacklistEntry_TrimsBothFields(t *testing.T) {
	e := NewBlacklistEntry("  Hello World ", "http://ex.com/a ")
	assert.Equal(t, "http://ex.com/a", e.Identity)
	assert.Equal(t, "Hello World", e.Label)
}

func TestValidIdentity(t *testing.T) {
	assert.True(t, ValidIdentity(""))
	assert.True(t, ValidIdentity("https://ex.com/caf\u00e9"))
	assert.False(t, ValidIdentity("https://ex.com/\xff"))
	assert.False(t, ValidIdentity("https://ex.com/\xc3"))
}

func TestNewBlacklistEntry_KeepsIdentityBytes(t *testing.T) {
	e := NewBlacklistEntry("Bad \xff title", " https://ex.com/\xff ")
	assert.Equal(t, "https://ex.com/\xff", e.Identity)
	assert.Equal(t, "Bad \ufffd title", e.Label)
}

func TestBlacklist_WithReturnsCopy(t *testing.T) {
	orig := Blacklist{"http://ex.com/a": "A"}
	next := orig.With(NewBlacklistEntry("B", "http://ex.com/b"))

	assert.Len(t, orig, 1)
	assert.Len(t, next, 2)
	assert.True(t, next.Has("http://ex.com/b"))
	assert.False(t, orig.Has("http://ex.com/b"))
}

func TestBlacklist_WithOverwritesLabel(t *testing.T) {
	bl := Blacklist{}.
		With(NewBlacklistEntry("Hello World", "http://ex.com/a")).
		With(NewBlacklistEntry("Hello World (edited)", "http://ex.com/a"))

	assert.Len(t, bl, 1)
	assert.Equal(t, "Hello World (edited)", bl["http://ex.com/a"])
}

func TestBlacklist_Without(t *testing.T) {
	orig := Blacklist{"a": "A", "b": "B"}
	next := orig.Without("a")

	assert.False(t, next.Has("a"))
	assert.True(t, orig.Has("a"))
}

func TestBlacklist_NilClone(t *testing.T) {
	var bl Blacklist
	c := bl.Clone()
	assert.NotNil(t, c)
	assert.Empty(t, c)
}

func TestBlacklist_EntriesSorted(t *testing.T) {
	bl := Blacklist{"c": "C", "a": "A", "b": "B"}
	entries := bl.Entries()
	assert.Equal(t, []BlacklistEntry{
		{Identity: "a", Label: "A"},
		{Identity: "b", Label: "B"},
		{Identity: "c", Label: "C"},
	}, entries)
}
