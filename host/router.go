package host

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pieceengine/piece-host/engine"
	"github.com/pieceengine/piece-host/locator"
)

type healthResponse struct {
	State     string   `json:"state"`
	Handle    string   `json:"handle"`
	Frames    uint64   `json:"frames"`
	Logs      uint64   `json:"native_logs"`
	Missing   []string `json:"missing,omitempty"`
	LastFrame string   `json:"last_frame"`
}

type entryResponse struct {
	Capability string `json:"capability"`
	Symbol     string `json:"symbol"`
	Handle     string `json:"handle"`
	OptionsLen int    `json:"options_len"`
}

type locatorResponse struct {
	Policy      string          `json:"policy"`
	Sealed      bool            `json:"sealed"`
	Entries     []entryResponse `json:"entries"`
	Overwritten []entryResponse `json:"overwritten"`
}

// NewRouter returns the host's HTTP handler:
//
//	GET /metrics   Prometheus exposition of the host collector
//	GET /healthz   engine state; 503 unless the engine is initialized
//	GET /locator   factory registrations, including overwritten ones
func NewRouter(h *Host) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Get("/healthz", h.handleHealth)
	r.Get("/locator", h.handleLocator)
	return r
}

func (h *Host) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := h.Stats()
	resp := healthResponse{
		State:     stats.State.String(),
		Handle:    h.engine.Handle().String(),
		Frames:    stats.Frames,
		Logs:      stats.Logs.Delivered,
		LastFrame: stats.LastFrame.String(),
	}
	for _, kind := range h.engine.Locator().Missing() {
		resp.Missing = append(resp.Missing, kind.String())
	}

	status := http.StatusOK
	if stats.State != engine.StateInitialized {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Host) handleLocator(w http.ResponseWriter, _ *http.Request) {
	loc := h.engine.Locator()
	writeJSON(w, http.StatusOK, locatorResponse{
		Policy:      loc.Policy().String(),
		Sealed:      loc.Sealed(),
		Entries:     entries(loc.Entries()),
		Overwritten: entries(loc.Overwritten()),
	})
}

func entries(in []locator.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(in))
	for _, e := range in {
		out = append(out, entryResponse{
			Capability: e.Capability.String(),
			Symbol:     e.Symbol,
			Handle:     e.Handle.String(),
			OptionsLen: len(e.Options),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
