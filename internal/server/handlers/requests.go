package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgegate/edgegate/internal/core/requestlog"
	apperrors "github.com/edgegate/edgegate/internal/errors"
	"github.com/edgegate/edgegate/internal/server/middleware"
)

// Requests serves sanitized request snapshots for debugging. Snapshots
// expire with the correlator TTL, so lookups on old IDs return 404.
type Requests struct {
	correlator *requestlog.Correlator
}

// NewRequests builds the snapshot lookup handler.
func NewRequests(correlator *requestlog.Correlator) *Requests {
	return &Requests{correlator: correlator}
}

// Get serves GET /ops/requests/{requestID}.
func (h *Requests) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if id == "" {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeInvalidInput, "request ID is required"),
			middleware.GetRequestID(r.Context()))
		return
	}

	record, ok, err := h.correlator.Get(r.Context(), id)
	if err != nil {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeUnavailable, "snapshot store unavailable"),
			middleware.GetRequestID(r.Context()))
		return
	}
	if !ok {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeNotFound, "no snapshot for that request ID"),
			middleware.GetRequestID(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, record)
}
