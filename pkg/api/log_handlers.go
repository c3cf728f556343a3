package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/audit"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/middleware"
)

// LogHandlers serves the audit trail. Admin scope only.
type LogHandlers struct {
	store *audit.Store
	log   *logrus.Logger
}

// NewLogHandlers creates a LogHandlers.
func NewLogHandlers(store *audit.Store, log *logrus.Logger) *LogHandlers {
	return &LogHandlers{store: store, log: log}
}

// RegisterRoutes registers the log routes behind the admin gate.
func (h *LogHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/logs", middleware.RequireAdmin(http.HandlerFunc(h.ListLogs))).Methods(http.MethodGet)
}

// ListLogs returns the entries for one record reference, newest first.
func (h *LogHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	record := r.URL.Query().Get("record")
	if record == "" {
		httputil.WriteBadRequest(w, "record query parameter is required")
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.store.List(r.Context(), record, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, entries)
}
