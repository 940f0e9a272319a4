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
	"log/slog"
	"sync"

	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
)

// TrackState 是追蹤器的生命狀態。
type TrackState uint8

const (
	// Idle 表示尚未取得起始游標。
	Idle TrackState = iota
	// Tracking 表示正常追蹤中。
	Tracking
)

func (s TrackState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// ShoeState 是追蹤器狀態的唯讀快照。
type ShoeState struct {
	State             TrackState
	Shoe              int
	Round             int
	LastObservedCount int
	RoundsAdvanced    uint64
	ShoesAdvanced     uint64
}

// BatchEffect 描述一次批次觀測對狀態的影響。
type BatchEffect uint8

const (
	// BatchNoop 表示批次未帶來狀態變化（含重複批次）。
	BatchNoop BatchEffect = iota
	// BatchRecomputed 表示依批次筆數重算了局號。
	BatchRecomputed
	// BatchShoeAdvanced 表示批次觸發了換靴。
	BatchShoeAdvanced
)

// Tracker 維護單一桌台的 (靴, 局) 狀態。
//
// 寫入全部經過同一把鎖（單寫者），讀取走 Snapshot；
// 所有轉移皆冪等：相同觀測重複餵入不會重複推進。
type Tracker struct {
	cfg spec.TrackSetting
	bus *signal.Bus
	log *slog.Logger

	mu             sync.Mutex
	state          TrackState
	shoe           int
	round          int
	lastCount      int
	lastBatchSig   string
	lastRoundLabel string
	roundsAdvanced uint64
	shoesAdvanced  uint64
}

// NewTracker 建立追蹤器。事件經 bus 發布（非阻塞）。
func NewTracker(cfg spec.TrackSetting, bus *signal.Bus, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{cfg: cfg, bus: bus, log: log, state: Idle}
}

// Seed 以後端游標作為起始狀態。
func (t *Tracker) Seed(cur signal.BackendCursor) error {
	if err := cur.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shoe = cur.Shoe
	t.round = cur.Round
	t.lastCount = cur.Round - 1
	t.state = Tracking
	return nil
}

// SeedDefault 在後端不可達時以 {靴 1, 局 1} 起始。
func (t *Tracker) SeedDefault() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shoe = 1
	t.round = 1
	t.lastCount = 0
	t.state = Tracking
}

// Snapshot 回傳目前狀態的唯讀快照。
func (t *Tracker) Snapshot() ShoeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ShoeState{
		State:             t.state,
		Shoe:              t.shoe,
		Round:             t.round,
		LastObservedCount: t.lastCount,
		RoundsAdvanced:    t.roundsAdvanced,
		ShoesAdvanced:     t.shoesAdvanced,
	}
}

// ObserveDom 處理一次 DOM 快照，回報是否偵測到新局邊緣。
//
// 頁面局號文字只作邊緣觸發：文字改變且舊值非空才算新局；
// 文字本身的數值不可信，不用來設定局號。
func (t *Tracker) ObserveDom(snap signal.DomSnapshot) bool {
	if snap.Validate() != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Tracking {
		return false
	}

	label := snap.RoundLabel
	prev := t.lastRoundLabel
	if label != "" {
		t.lastRoundLabel = label
	}
	if label == "" || label == prev || prev == "" {
		return false
	}

	t.round++
	t.roundsAdvanced++
	t.publishLocked(signal.RoundAdvanced, "dom round label edge")
	return true
}

// ObserveBatch 處理一次上游批次，回報影響種類。
//
// 局號以批次筆數為準威權重算：round = 筆數 + 1，與順序無關。
// 換靴邊緣：筆數從 >0 掉回 0，或高位大幅回落
// （prev > PrevMin 且 cur < CurMax 且落差 > DropThreshold）；
// 回落後若筆數仍 > 0，新靴局號同批重算為 筆數 + 1。
func (t *Tracker) ObserveBatch(batch signal.ApiBatch) BatchEffect {
	if batch.Validate() != nil {
		return BatchNoop
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Tracking {
		return BatchNoop
	}

	sig := batch.Signature()
	if sig == t.lastBatchSig {
		return BatchNoop
	}
	t.lastBatchSig = sig

	cur := batch.Count()
	prev := t.lastCount
	t.lastCount = cur

	if t.isShoeDropLocked(prev, cur) {
		// 高位回落而非歸零：觸發批次本身已帶新靴的已結束局，
		// 局號同批重校，不留給對帳補救。
		start := 1
		if cur > 0 {
			start = cur + 1
		}
		t.advanceShoeLocked("batch count drop", start)
		return BatchShoeAdvanced
	}

	if cur == prev {
		return BatchNoop
	}
	t.round = cur + 1
	return BatchRecomputed
}

func (t *Tracker) isShoeDropLocked(prev, cur int) bool {
	if prev > 0 && cur == 0 {
		return true
	}
	return prev > t.cfg.ShoeDropPrevMin &&
		cur < t.cfg.ShoeDropCurMax &&
		prev-cur > t.cfg.ShoeDropThreshold
}

// AdvanceShoe 是對帳器修正用的換靴入口，新靴從第 1 局起算。
func (t *Tracker) AdvanceShoe(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceShoeLocked(reason, 1)
}

func (t *Tracker) advanceShoeLocked(reason string, startRound int) {
	t.shoe++
	t.round = startRound
	t.lastCount = startRound - 1
	t.lastRoundLabel = ""
	t.shoesAdvanced++
	t.publishLocked(signal.ShoeAdvanced, reason)
}

// SetRound 是對帳器修正用的局號入口。非法值忽略。
func (t *Tracker) SetRound(round int) {
	if round < 1 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.round = round
	t.lastCount = round - 1
}

// NoteDrift 發布游標偏移事件（對帳器呼叫）。
func (t *Tracker) NoteDrift(note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishLocked(signal.DriftDetected, note)
}

func (t *Tracker) publishLocked(kind signal.EventKind, note string) {
	if t.bus == nil {
		return
	}
	if !t.bus.Publish(signal.Event{Kind: kind, Shoe: t.shoe, Round: t.round, Note: note}) {
		t.log.Warn("tracker event dropped", "kind", kind.String(), "shoe", t.shoe, "round", t.round)
	}
}
