package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/edgegate/edgegate/internal/core/telemetry"
	apperrors "github.com/edgegate/edgegate/internal/errors"
	"github.com/edgegate/edgegate/internal/server/middleware"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Metrics exposes rollup reads to operators and dashboards.
type Metrics struct {
	aggregator *telemetry.Aggregator
}

// NewMetrics builds the metrics read handler.
func NewMetrics(aggregator *telemetry.Aggregator) *Metrics {
	return &Metrics{aggregator: aggregator}
}

// Daily serves the daily aggregate; ?date=YYYY-MM-DD, defaulting to today.
func (h *Metrics) Daily(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !dateRe.MatchString(date) {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeInvalidInput, "date must be YYYY-MM-DD"),
			middleware.GetRequestID(r.Context()))
		return
	}

	summary, err := h.aggregator.Daily(r.Context(), date)
	if err != nil {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeUnavailable, "metrics store unavailable"),
			middleware.GetRequestID(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Hourly serves one hour bucket; ?date=YYYY-MM-DD&hour=0..23.
func (h *Metrics) Hourly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" && !dateRe.MatchString(date) {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeInvalidInput, "date must be YYYY-MM-DD"),
			middleware.GetRequestID(r.Context()))
		return
	}

	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeInvalidInput, "hour must be between 0 and 23"),
			middleware.GetRequestID(r.Context()))
		return
	}

	summary, err := h.aggregator.Hourly(r.Context(), date, hour)
	if err != nil {
		apperrors.Respond(w,
			apperrors.New(apperrors.CodeUnavailable, "metrics store unavailable"),
			middleware.GetRequestID(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
