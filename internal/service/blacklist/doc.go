// Package blacklist implements the feed item blacklist.
//
// A blacklisted item is identified by its normalized permalink. The
// ingestion pipeline asks Contains before admitting a candidate, and the
// admin "blacklist" command removes an existing item from storage and
// records its identity so the item is never imported again.
//
// The service depends on the Repository and ItemStore interfaces defined in
// repository.go. It never imports net/http or database/sql directly.
package blacklist
