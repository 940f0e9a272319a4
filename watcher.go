// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tablewatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/tablewatch/browser"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/recorder"
	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
	"github.com/zintix-labs/tablewatch/stats"
)

// WatcherMetrics 是輪詢迴圈的拉式統計快照。
type WatcherMetrics struct {
	Loops         uint64
	DomErrors     uint64
	DomBackoffs   uint64
	Batches       uint64
	BatchErrors   uint64
	RoundsHandled uint64
	SubmitErrors  uint64
	SyncChecks    uint64
	SyncErrors    uint64
	DroppedEvents uint64
}

// Watcher 是桌台監看的長駐元件（app.Component）。
//
// 單一 goroutine 循序輪詢：DOM 快照、上游批次、後端對帳各依節奏進行，
// 事件（新局、換靴）在同一迴圈內消化，狀態轉移永遠只有一個寫者。
// 任何單次迭代的錯誤都記錄後吞掉；迴圈只因 Shutdown 結束。
type Watcher struct {
	cfg        spec.PollSetting
	dom        browser.DomEvaluator
	tracker    *Tracker
	pipeline   *Pipeline
	reconciler *Reconciler
	upstream   BatchFetcher
	backend    SyncBackend
	jnl        *journal.Journal
	bus        *signal.Bus
	recorder   *recorder.RoundRecorder
	log        *slog.Logger

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	loops         atomic.Uint64
	domErrors     atomic.Uint64
	domBackoffs   atomic.Uint64
	batches       atomic.Uint64
	batchErrors   atomic.Uint64
	roundsHandled atomic.Uint64
	submitErrors  atomic.Uint64
	syncChecks    atomic.Uint64
	syncErrors    atomic.Uint64

	// 只在輪詢 goroutine 內讀寫。
	lastGeometry []signal.CardRect
}

// NewWatcher 組裝監看元件。
func NewWatcher(cfg spec.PollSetting, dom browser.DomEvaluator,
	tracker *Tracker, pipeline *Pipeline, reconciler *Reconciler,
	up BatchFetcher, be SyncBackend, jnl *journal.Journal,
	bus *signal.Bus, rcd *recorder.RoundRecorder, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		cfg: cfg, dom: dom,
		tracker: tracker, pipeline: pipeline, reconciler: reconciler,
		upstream: up, backend: be, jnl: jnl,
		bus: bus, recorder: rcd, log: log,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Metrics 回傳目前統計快照。
func (w *Watcher) Metrics() WatcherMetrics {
	return WatcherMetrics{
		Loops:         w.loops.Load(),
		DomErrors:     w.domErrors.Load(),
		DomBackoffs:   w.domBackoffs.Load(),
		Batches:       w.batches.Load(),
		BatchErrors:   w.batchErrors.Load(),
		RoundsHandled: w.roundsHandled.Load(),
		SubmitErrors:  w.submitErrors.Load(),
		SyncChecks:    w.syncChecks.Load(),
		SyncErrors:    w.syncErrors.Load(),
		DroppedEvents: w.bus.Dropped(),
	}
}

// Tracker 暴露追蹤器（狀態 API 用）。
func (w *Watcher) Tracker() *Tracker { return w.tracker }

// Report 回傳目前靴的統計報表（狀態 API 用）。
func (w *Watcher) Report() *stats.ShoeReport {
	if w.recorder == nil {
		return recorder.NewRoundRecorder("", 0).Done()
	}
	return w.recorder.Done()
}

// SyncNow 立即執行一次對帳（手動觸發入口）。
func (w *Watcher) SyncNow(ctx context.Context) (Decision, error) {
	w.syncChecks.Add(1)
	d, err := w.reconciler.Check(ctx)
	if err != nil {
		w.syncErrors.Add(1)
	}
	return d, err
}

// Run 啟動輪詢迴圈，阻塞直到 Shutdown。
func (w *Watcher) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.done
		cancel()
	}()
	defer close(w.stopped)

	w.seed(ctx)

	domTick := time.NewTicker(w.cfg.DomInterval())
	upTick := time.NewTicker(w.cfg.UpstreamInterval())
	syncTick := time.NewTicker(w.cfg.SyncCheckInterval())
	heartbeat := time.NewTicker(w.cfg.Heartbeat())
	prune := time.NewTicker(time.Hour)
	defer domTick.Stop()
	defer upTick.Stop()
	defer syncTick.Stop()
	defer heartbeat.Stop()
	defer prune.Stop()

	domFailures := 0
	for {
		select {
		case <-w.done:
			return nil

		case ev, ok := <-w.bus.C():
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)

		case <-domTick.C:
			w.loops.Add(1)
			if w.pollDom(ctx) {
				domFailures = 0
				continue
			}
			domFailures++
			if domFailures >= w.cfg.MaxDomFailures {
				// 失敗計數只在成功時歸零：持續失敗時退避步進
				// 逐次加大，由 BackoffMax 封頂。
				w.backoff(domFailures - w.cfg.MaxDomFailures)
			}

		case <-upTick.C:
			w.pollUpstream(ctx)

		case <-syncTick.C:
			if _, err := w.SyncNow(ctx); err != nil {
				w.log.Warn("sync check failed", "err", err)
			}

		case <-heartbeat.C:
			st := w.tracker.Snapshot()
			w.log.Info("heartbeat",
				"shoe", st.Shoe, "round", st.Round,
				"loops", w.loops.Load(), "dom_errors", w.domErrors.Load())

		case <-prune.C:
			if w.jnl == nil {
				continue
			}
			if n, err := w.jnl.Prune(); err != nil {
				w.log.Warn("journal prune failed", "err", err)
			} else if n > 0 {
				w.log.Info("journal pruned", "files", n)
			}
		}
	}
}

// Shutdown 要求迴圈結束並等待退出。
func (w *Watcher) Shutdown(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.done) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// seed 以後端游標起始；後端不可達時退回 {1,1}。
func (w *Watcher) seed(ctx context.Context) {
	cur, err := w.backend.CurrentCursor(ctx)
	if err != nil {
		w.log.Warn("seed from backend failed, defaulting to shoe 1 round 1", "err", err)
		w.tracker.SeedDefault()
		return
	}
	if err := w.tracker.Seed(cur); err != nil {
		w.log.Warn("backend cursor invalid, defaulting", "err", err)
		w.tracker.SeedDefault()
		return
	}
	if w.recorder != nil {
		w.recorder.Reset(cur.Shoe)
	}
	w.log.Info("seeded from backend", "shoe", cur.Shoe, "round", cur.Round)
}

// pollDom 做一次 DOM 輪詢，回報是否成功。
func (w *Watcher) pollDom(ctx context.Context) bool {
	snap, err := w.dom.Snapshot(ctx)
	if err != nil {
		w.domErrors.Add(1)
		w.log.Warn("dom poll failed", "err", err)
		return false
	}
	if len(snap.Geometry) > 0 {
		w.lastGeometry = snap.Geometry
	}
	w.tracker.ObserveDom(snap)
	return true
}

// pollUpstream 抓一次上游批次並餵入追蹤器。
func (w *Watcher) pollUpstream(ctx context.Context) {
	batch, err := w.upstream.FetchBatch(ctx)
	if err != nil {
		w.batchErrors.Add(1)
		w.log.Warn("upstream fetch failed", "err", err)
		return
	}
	w.batches.Add(1)
	w.tracker.ObserveBatch(signal.ApiBatch{Batch: batch})
}

// handleEvent 消化追蹤器事件。
func (w *Watcher) handleEvent(ctx context.Context, ev signal.Event) {
	switch ev.Kind {
	case signal.RoundAdvanced:
		w.roundsHandled.Add(1)
		if _, err := w.pipeline.HandleRound(ctx, ev.Shoe, ev.Round, w.lastGeometry); err != nil {
			w.submitErrors.Add(1)
			w.log.Warn("round submit failed, reconciler will backfill",
				"shoe", ev.Shoe, "round", ev.Round, "err", err)
		}

	case signal.ShoeAdvanced:
		w.onShoeAdvanced(ev)

	case signal.DriftDetected:
		w.log.Warn("cursor drift detected", "note", ev.Note)
	}
}

// onShoeAdvanced 結算上一靴報表、重置紀錄員，並以 fire-and-forget
// 通知後端換靴（失敗只記錄，對帳會兜底）。
func (w *Watcher) onShoeAdvanced(ev signal.Event) {
	w.log.Info("shoe advanced", "shoe", ev.Shoe, "note", ev.Note)

	if w.recorder != nil {
		report := w.recorder.Done()
		if w.jnl != nil && report.Summary.Rounds > 0 {
			if err := w.jnl.Append(journal.CategoryMonitor, "shoe_report", report); err != nil {
				w.log.Warn("journal shoe report failed", "err", err)
			}
		}
		w.recorder.Reset(ev.Shoe)
	}

	go func() {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.backend.AdvanceShoe(notifyCtx); err != nil {
			w.log.Warn("advance shoe notify failed", "err", err)
		}
	}()
}

// backoff 以有界指數退避暫停 DOM 輪詢節奏。
func (w *Watcher) backoff(step int) {
	d := w.cfg.BackoffBase() << step
	if lim := w.cfg.BackoffMax(); d > lim || d <= 0 {
		d = lim
	}
	w.domBackoffs.Add(1)
	w.log.Warn("dom polling backoff", "wait", d.String())
	select {
	case <-w.done:
	case <-time.After(d):
	}
}
