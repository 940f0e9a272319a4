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

// Package tablewatch 追蹤單一龍虎桌台的 (靴, 局) 狀態，
// 在每局結束時辨識開牌並回報結果，並與後端對帳保持一致。
package tablewatch

import (
	"log/slog"

	"github.com/zintix-labs/tablewatch/browser"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/recognizer"
	"github.com/zintix-labs/tablewatch/recorder"
	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
)

// Backend 是組裝時需要的完整後端客戶端面（回報 + 對帳）。
// *backend.Client 滿足此介面。
type Backend interface {
	ResultSink
	SyncBackend
}

// Tablewatch 持有設定與所有協作者，負責把監看元件組裝起來。
// 協作者一律由外部注入，本包不讀取任何全域狀態。
type Tablewatch struct {
	setting *spec.WatchSetting

	dom     browser.DomEvaluator
	frames  browser.FrameCapturer
	rec     recognizer.Recognizer
	backend Backend
	up      BatchFetcher
	jnl     *journal.Journal
	archive *browser.FrameArchive
	log     *slog.Logger
}

// AttachArchive 掛上辨識失敗幀的存檔（可選）。
func (tw *Tablewatch) AttachArchive(a *browser.FrameArchive) { tw.archive = a }

// New 驗證協作者齊全後建立組裝器。journal 與 logger 可為 nil。
func New(setting *spec.WatchSetting, dom browser.DomEvaluator, frames browser.FrameCapturer,
	rec recognizer.Recognizer, be Backend, up BatchFetcher,
	jnl *journal.Journal, log *slog.Logger) (*Tablewatch, error) {
	if setting == nil {
		return nil, errs.NewFatal("tablewatch: nil setting")
	}
	if dom == nil || frames == nil {
		return nil, errs.NewFatal("tablewatch: missing browser collaborators")
	}
	if rec == nil {
		return nil, errs.NewFatal("tablewatch: missing recognizer")
	}
	if be == nil {
		return nil, errs.NewFatal("tablewatch: missing backend client")
	}
	if up == nil {
		return nil, errs.NewFatal("tablewatch: missing upstream fetcher")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tablewatch{
		setting: setting,
		dom:     dom, frames: frames, rec: rec,
		backend: be, up: up, jnl: jnl, log: log,
	}, nil
}

// Setting 回傳設定（唯讀使用）。
func (tw *Tablewatch) Setting() *spec.WatchSetting { return tw.setting }

// BuildWatcher 把追蹤器、回報管線、對帳器與紀錄員接成監看元件。
func (tw *Tablewatch) BuildWatcher() *Watcher {
	ws := tw.setting
	bus := signal.NewBus(ws.Track.EventBufferSize)
	tracker := NewTracker(ws.Track, bus, tw.log)
	rcd := recorder.NewRoundRecorder(ws.DeskID, 1)
	table := ws.CodecTable()

	pipeline := NewPipeline(ws.DeskID, ws.Recognize,
		tw.frames, browser.NewCaptureAdapter(), tw.rec,
		tw.backend, tw.up, table, tw.jnl, rcd, tw.log)
	pipeline.AttachArchive(tw.archive)

	reconciler := NewReconciler(ws.Reconcile, tracker, tw.backend, rcd, tw.jnl, tw.log)

	return NewWatcher(ws.Poll, tw.dom,
		tracker, pipeline, reconciler,
		tw.up, tw.backend, tw.jnl, bus, rcd, tw.log)
}
