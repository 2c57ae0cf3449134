// Package maintenance exposes a cron-triggered cleanup endpoint. Only old
// audit records are pruned; refresh tokens are kept indefinitely as part of
// the audit trail.
package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"user-management/internal/audit"
	"user-management/internal/observability"
)

type CleanupHandler struct {
	recorder       *audit.PostgresRecorder
	logger         *observability.Logger
	cronSecret     string
	auditRetention time.Duration
	batchSize      int
}

func NewCleanupHandler(
	recorder *audit.PostgresRecorder,
	logger *observability.Logger,
	cronSecret string,
	auditRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	if auditRetention <= 0 {
		auditRetention = 90 * 24 * time.Hour
	}

	return &CleanupHandler{
		recorder:       recorder,
		logger:         logger,
		cronSecret:     strings.TrimSpace(cronSecret),
		auditRetention: auditRetention,
		batchSize:      batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
		return
	}

	cutoff := time.Now().UTC().Add(-h.auditRetention)
	deleted, err := h.recorder.PruneOlderThan(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("audit_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Cleanup failed"})
		return
	}

	h.logger.Info("audit_cleanup_completed", map[string]any{"deleted_action_logs": deleted})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"deleted_action_logs": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
