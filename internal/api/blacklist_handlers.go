package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/httputil"
	"github.com/ignite/feed-aggregator/internal/pkg/logger"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
)

// NonceActionRemove is the nonce action guarding DELETE /api/blacklist.
const NonceActionRemove = "unblacklist_feed_item"

// removeSubject binds remove tokens to the normalized permalink.
func removeSubject(r *http.Request) string {
	return domain.NormalizePermalink(r.URL.Query().Get("permalink"))
}

// BlacklistAPI exposes the blacklist command and the read/remove endpoints.
type BlacklistAPI struct {
	svc *blacklist.Service
	cmd *blacklist.Command
}

func NewBlacklistAPI(svc *blacklist.Service, cmd *blacklist.Command) *BlacklistAPI {
	return &BlacklistAPI{svc: svc, cmd: cmd}
}

// HandleCommand runs the admin blacklist action and redirects back to the
// listing.
//
//	GET /admin/feed-items/blacklist?item=<id>&paged=<n>&_nonce=<token>
func (a *BlacklistAPI) HandleCommand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := a.cmd.Handle(r.Context(), blacklist.CommandRequest{
		ItemID: q.Get("item"),
		Paged:  q.Get("paged"),
		Nonce:  q.Get("_nonce"),
	})
	if err != nil {
		writeBlacklistError(w, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleList returns every blacklisted identity.
//
//	GET /api/blacklist
func (a *BlacklistAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.svc.List(r.Context())
	if err != nil {
		writeBlacklistError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"entries": entries, "total": len(entries)})
}

// HandleCheck reports whether a permalink is blacklisted.
//
//	GET /api/blacklist/check?permalink=<url>
func (a *BlacklistAPI) HandleCheck(w http.ResponseWriter, r *http.Request) {
	permalink := r.URL.Query().Get("permalink")
	blocked, err := a.svc.Contains(r.Context(), permalink)
	if err != nil {
		writeBlacklistError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"permalink":   permalink,
		"identity":    domain.NormalizePermalink(permalink),
		"blacklisted": blocked,
	})
}

// HandleRemove takes a permalink off the blacklist.
//
//	DELETE /api/blacklist?permalink=<url>
func (a *BlacklistAPI) HandleRemove(w http.ResponseWriter, r *http.Request) {
	permalink := r.URL.Query().Get("permalink")
	if strings.TrimSpace(permalink) == "" {
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_permalink", "permalink is required")
		return
	}
	if err := a.svc.Remove(r.Context(), permalink); err != nil {
		if errors.Is(err, blacklist.ErrNotFound) {
			httputil.ErrorCode(w, http.StatusNotFound, "not_blacklisted", "permalink is not blacklisted")
			return
		}
		writeBlacklistError(w, err)
		return
	}
	httputil.NoContent(w)
}

// writeBlacklistError maps service errors onto HTTP responses. Each rejection
// gets its own status and code.
func writeBlacklistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, blacklist.ErrInvalidNonce):
		httputil.ErrorCode(w, http.StatusForbidden, "invalid_nonce", "the link has expired, reload the listing and try again")
	case errors.Is(err, blacklist.ErrMissingItem):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_item", "no item was given")
	case errors.Is(err, blacklist.ErrWrongKind):
		httputil.ErrorCode(w, http.StatusBadRequest, "wrong_kind", "the item is not a feed item")
	case errors.Is(err, blacklist.ErrInvalidPermalink):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_permalink", "the item permalink is not valid UTF-8")
	case errors.Is(err, blacklist.ErrNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "item_not_found", "the item does not exist")
	case errors.Is(err, blacklist.ErrBusy):
		httputil.Unavailable(w, "busy", "another blacklist update is in progress", 1)
	case errors.Is(err, blacklist.ErrPersistence):
		logger.Error("blacklist persistence failure", "error", err)
		httputil.Unavailable(w, "persistence_failure", "the blacklist could not be saved, try again", 5)
	default:
		httputil.InternalError(w, err)
	}
}
