package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zintix-labs/tablewatch"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/server/httperr"
	"github.com/zintix-labs/tablewatch/server/svrcfg"
	"github.com/zintix-labs/tablewatch/stats"
)

// StatusResponse 是 /v1/status 的回應體。
type StatusResponse struct {
	State          string `json:"state"`
	Shoe           int    `json:"shoe"`
	Round          int    `json:"round"`
	RoundsAdvanced uint64 `json:"rounds_advanced"`
	ShoesAdvanced  uint64 `json:"shoes_advanced"`

	Loops         uint64 `json:"loops"`
	DomErrors     uint64 `json:"dom_errors"`
	Batches       uint64 `json:"batches"`
	RoundsHandled uint64 `json:"rounds_handled"`
	SubmitErrors  uint64 `json:"submit_errors"`
	SyncChecks    uint64 `json:"sync_checks"`
	SyncErrors    uint64 `json:"sync_errors"`
	DroppedEvents uint64 `json:"dropped_events"`
}

// SyncResponse 是 /v1/sync 的回應體。
type SyncResponse struct {
	Mode  string `json:"mode"`
	Delta int    `json:"delta"`
}

func (h *WatchHandler) Status(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := h.watcher.Tracker().Snapshot()
	m := h.watcher.Metrics()
	resp := StatusResponse{
		State:          st.State.String(),
		Shoe:           st.Shoe,
		Round:          st.Round,
		RoundsAdvanced: st.RoundsAdvanced,
		ShoesAdvanced:  st.ShoesAdvanced,
		Loops:          m.Loops,
		DomErrors:      m.DomErrors,
		Batches:        m.Batches,
		RoundsHandled:  m.RoundsHandled,
		SubmitErrors:   m.SubmitErrors,
		SyncChecks:     m.SyncChecks,
		SyncErrors:     m.SyncErrors,
		DroppedEvents:  m.DroppedEvents,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		httperr.Errs(w, err)
		return
	}
}

func (h *WatchHandler) Report(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report := h.watcher.Report()

	// format 參數選渲染器，預設 json
	var render stats.ShoeReportRender
	switch q.URL.Query().Get("format") {
	case "", "json":
		render = &stats.JsonShoeReportRender{}
		w.Header().Set("Content-Type", "application/json")
	case "yaml":
		render = &stats.YAMLShoeReportRender{}
		w.Header().Set("Content-Type", "application/yaml")
	case "table":
		render = &stats.TableShoeReportRender{}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
		return
	}
	if err := render.Write(w, report); err != nil {
		httperr.Errs(w, err)
		return
	}
}

func (h *WatchHandler) Sync(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 對帳會打後端，設置超時 context
	ctx := q.Context()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	d, err := h.watcher.SyncNow(ctx)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SyncResponse{Mode: d.Mode.String(), Delta: d.Delta}); err != nil {
		httperr.Errs(w, err)
		return
	}
}

// ============================================================
// ** WatchHandler **
// ============================================================

type WatchHandler struct {
	watcher *tablewatch.Watcher
}

func NewWatchHandler(sCfg *svrcfg.SvrCfg) (*WatchHandler, error) {
	if sCfg.Watcher == nil {
		return nil, errs.NewFatal("build watch handler error: nil watcher")
	}
	return &WatchHandler{watcher: sCfg.Watcher}, nil
}
