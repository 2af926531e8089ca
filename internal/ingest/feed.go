package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/mmcdole/gofeed"
)

// ParseCandidates reads an RSS, Atom or JSON feed document and returns its
// items as candidates. Fetching the document is the caller's job.
func ParseCandidates(r io.Reader) ([]domain.CandidateItem, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return CandidatesFromFeed(feed), nil
}

// CandidatesFromFeed maps feed items to candidates. The GUID falls back to
// the link, and the link falls back to the first enclosure.
func CandidatesFromFeed(feed *gofeed.Feed) []domain.CandidateItem {
	if feed == nil {
		return nil
	}
	out := make([]domain.CandidateItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := item.Link
		if link == "" && len(item.Enclosures) > 0 {
			link = item.Enclosures[0].URL
		}
		id := item.GUID
		if id == "" {
			id = link
		}
		out = append(out, domain.CandidateItem{
			ID:        id,
			Title:     strings.TrimSpace(item.Title),
			Permalink: link,
		})
	}
	return out
}
