package blacklist

import "errors"

// Sentinel errors for the blacklist service layer.
var (
	// ErrNotFound covers a missing item, an item id that does not parse and
	// a permalink that is not on the blacklist.
	ErrNotFound = errors.New("blacklist: item not found")

	// ErrWrongKind means the item exists but is not a feed item.
	ErrWrongKind = errors.New("blacklist: item is not a feed item")

	// ErrMissingItem means the command was invoked without an item id.
	ErrMissingItem = errors.New("blacklist: item id is required")

	// ErrInvalidPermalink means the item's permalink is not valid UTF-8 and
	// cannot be stored as an identity.
	ErrInvalidPermalink = errors.New("blacklist: permalink is not valid UTF-8")

	// ErrInvalidNonce means the command token was missing, forged or expired.
	ErrInvalidNonce = errors.New("blacklist: invalid nonce")

	// ErrPersistence wraps storage failures that survived every retry.
	ErrPersistence = errors.New("blacklist: persistence failure")

	// ErrBusy means another writer held the blacklist for the whole wait window.
	ErrBusy = errors.New("blacklist: another update is in progress")
)
