package domain

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// NormalizePermalink derives the blacklist identity for a raw permalink.
// The identity is the permalink with surrounding whitespace removed; an empty
// result is still a valid identity.
func NormalizePermalink(raw string) string {
	return strings.TrimSpace(raw)
}

// ValidIdentity reports whether identity survives the JSON encoding the
// blacklist is persisted in. Invalid UTF-8 would be rewritten to U+FFFD.
func ValidIdentity(identity string) bool {
	return utf8.ValidString(identity)
}

// BlacklistEntry is a single suppressed feed item. The label is kept for
// display only and never takes part in identity comparisons.
type BlacklistEntry struct {
	Identity string `json:"identity"`
	Label    string `json:"label"`
}

// NewBlacklistEntry builds an entry from the title and permalink of the item
// being blacklisted. Invalid UTF-8 in the label is replaced; the identity is
// kept byte for byte.
func NewBlacklistEntry(title, permalink string) BlacklistEntry {
	return BlacklistEntry{
		Identity: NormalizePermalink(permalink),
		Label:    strings.ToValidUTF8(strings.TrimSpace(title), "\uFFFD"),
	}
}

// Blacklist maps identity to label. It is persisted as a whole.
type Blacklist map[string]string

// Has reports whether the identity is blacklisted.
func (b Blacklist) Has(identity string) bool {
	_, ok := b[identity]
	return ok
}

// Clone returns an independent copy. A nil receiver yields an empty, non-nil map.
func (b Blacklist) Clone() Blacklist {
	out := make(Blacklist, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// With returns a copy that contains e, replacing any label already stored
// under the same identity.
func (b Blacklist) With(e BlacklistEntry) Blacklist {
	out := b.Clone()
	out[e.Identity] = e.Label
	return out
}

// Without returns a copy with identity removed.
func (b Blacklist) Without(identity string) Blacklist {
	out := b.Clone()
	delete(out, identity)
	return out
}

// Entries returns the blacklist as a slice ordered by identity.
func (b Blacklist) Entries() []BlacklistEntry {
	out := make([]BlacklistEntry, 0, len(b))
	for k, v := range b {
		out = append(out, BlacklistEntry{Identity: k, Label: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}
