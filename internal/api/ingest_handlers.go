package api

import (
	"net/http"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/ingest"
	"github.com/ignite/feed-aggregator/internal/pkg/httputil"
)

const (
	// maxIngestBatch caps the candidates accepted by one check request.
	maxIngestBatch = 1000
	// maxIngestBodyBytes caps the request body read before decoding.
	maxIngestBodyBytes = 4 << 20
)

// IngestAPI lets the external ingestion pipeline filter candidate batches.
type IngestAPI struct {
	filter *ingest.Filter
}

func NewIngestAPI(filter *ingest.Filter) *IngestAPI {
	return &IngestAPI{filter: filter}
}

type ingestCheckRequest struct {
	Items []domain.CandidateItem `json:"items"`
}

// HandleCheck splits a batch into admitted and skipped candidates.
//
//	POST /api/ingest/check
func (a *IngestAPI) HandleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodyBytes)
	var req ingestCheckRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Items) > maxIngestBatch {
		httputil.BadRequest(w, "too many items in one batch")
		return
	}

	res, err := a.filter.Partition(r.Context(), req.Items)
	if err != nil {
		writeBlacklistError(w, err)
		return
	}
	httputil.OK(w, res)
}
