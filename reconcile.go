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
	"fmt"
	"log/slog"

	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
)

// SyncMode 是對帳決策的種類。
type SyncMode uint8

const (
	// SyncConsistent 表示雙方一致（含 -1 的回報延遲窗口），不動作。
	SyncConsistent SyncMode = iota
	// SyncIncremental 表示後端落後，需增量補傳。
	SyncIncremental
	// SyncFullResync 表示後端超前且幅度異常，捨棄本靴重建。
	SyncFullResync
	// SyncShoeAdvance 表示本地已換靴而後端仍停在舊靴。
	SyncShoeAdvance
)

var syncModeName = map[SyncMode]string{
	SyncConsistent:  "consistent",
	SyncIncremental: "incremental",
	SyncFullResync:  "full_resync",
	SyncShoeAdvance: "shoe_advance",
}

func (m SyncMode) String() string {
	if s, ok := syncModeName[m]; ok {
		return s
	}
	return "unknown"
}

// Decision 是一次對帳的決策。Delta = 本地局號 - 後端局號。
type Decision struct {
	Mode  SyncMode
	Delta int
}

// Decide 依決策帶分類本地與後端的局號差。純函式且冪等。
//
// diff = local - remote：
//   - 0 或 1：一致（後端游標指向下一局，本地快它一局屬正常）。
//   - >= IncrementalFloor：後端缺局，增量補傳。
//   - -1：本局回報尚在途中，視為一致。
//   - (ShoeAdvanceCeiling, FullResyncFloor]：後端超前異常，全量重建。
//   - <= ShoeAdvanceCeiling：本地已換靴、後端未跟上。
func Decide(cfg spec.ReconcileSetting, local, remote int) Decision {
	diff := local - remote
	switch {
	case diff == 0 || diff == 1 || diff == -1:
		return Decision{Mode: SyncConsistent, Delta: diff}
	case diff >= cfg.IncrementalFloor:
		return Decision{Mode: SyncIncremental, Delta: diff}
	case diff <= cfg.ShoeAdvanceCeiling:
		return Decision{Mode: SyncShoeAdvance, Delta: diff}
	default:
		return Decision{Mode: SyncFullResync, Delta: diff}
	}
}

// SyncBackend 是對帳器需要的後端寫入面。*backend.Client 滿足此介面。
type SyncBackend interface {
	CurrentCursor(ctx context.Context) (sig signal.BackendCursor, err error)
	SyncIncremental(ctx context.Context, results []backend.ResultSubmission) error
	DeleteAndResync(ctx context.Context, results []backend.ResultSubmission) error
	AdvanceShoe(ctx context.Context) error
}

// ResultSource 提供本靴已回報結果的本地權威副本（對帳補傳用）。
type ResultSource interface {
	ResultsForShoe(shoe int) []backend.ResultSubmission
}

// Reconciler 週期性比對本地與後端游標，並套用修正。
type Reconciler struct {
	cfg     spec.ReconcileSetting
	tracker *Tracker
	backend SyncBackend
	source  ResultSource
	journal *journal.Journal
	log     *slog.Logger
}

// NewReconciler 建立對帳器。journal 可為 nil（不留稽核線索）。
func NewReconciler(cfg spec.ReconcileSetting, tracker *Tracker, be SyncBackend,
	source ResultSource, jnl *journal.Journal, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		cfg: cfg, tracker: tracker, backend: be,
		source: source, journal: jnl, log: log,
	}
}

// Check 取後端游標、分類並套用修正，回傳本次決策。
//
// -1（回報延遲）歸為一致但仍寫入稽核日誌：延遲假設若不成立，
// 離線稽核要能從帶別轉移紀錄追回。
func (r *Reconciler) Check(ctx context.Context) (Decision, error) {
	cur, err := r.backend.CurrentCursor(ctx)
	if err != nil {
		return Decision{}, errs.Wrap(err, "reconcile: fetch cursor")
	}

	local := r.tracker.Snapshot()
	d := Decide(r.cfg, local.Round, cur.Round)

	if d.Mode != SyncConsistent || d.Delta == -1 {
		r.journalBand(local, cur, d)
	}
	if d.Mode == SyncConsistent {
		return d, nil
	}

	r.tracker.NoteDrift(fmt.Sprintf("mode=%s delta=%d remote=%d", d.Mode, d.Delta, cur.Round))
	if err := r.Apply(ctx, d, local, cur); err != nil {
		return d, err
	}
	return d, nil
}

// Apply 套用對帳決策。所有後端寫入皆為 upsert，重複套用安全。
func (r *Reconciler) Apply(ctx context.Context, d Decision, local ShoeState, cur signal.BackendCursor) error {
	switch d.Mode {
	case SyncConsistent:
		return nil

	case SyncIncremental:
		// 後端缺 [remote, local-1] 區間的局，補傳本地副本。
		missing := r.resultsInRange(local.Shoe, cur.Round, local.Round-1)
		if len(missing) == 0 {
			return errs.Warnf("reconcile: no local results to backfill rounds %d..%d", cur.Round, local.Round-1)
		}
		if err := r.backend.SyncIncremental(ctx, missing); err != nil {
			return errs.Wrap(err, "reconcile: incremental sync")
		}
		r.log.Info("incremental sync applied", "rounds", len(missing))
		return nil

	case SyncFullResync:
		all := r.sourceResults(local.Shoe)
		if err := r.backend.DeleteAndResync(ctx, all); err != nil {
			return errs.Wrap(err, "reconcile: delete and resync")
		}
		// 後端重建後游標回到本地局號。
		r.log.Info("full resync applied", "rounds", len(all))
		return nil

	case SyncShoeAdvance:
		// 本地已進新靴，後端仍在舊靴：通知換靴即可，
		// 新靴結果由正常回報路徑補齊。
		if err := r.backend.AdvanceShoe(ctx); err != nil {
			return errs.Wrap(err, "reconcile: advance shoe")
		}
		r.log.Info("backend shoe advance requested", "shoe", local.Shoe)
		return nil
	}
	return nil
}

func (r *Reconciler) sourceResults(shoe int) []backend.ResultSubmission {
	if r.source == nil {
		return nil
	}
	return r.source.ResultsForShoe(shoe)
}

func (r *Reconciler) resultsInRange(shoe, from, to int) []backend.ResultSubmission {
	var out []backend.ResultSubmission
	for _, s := range r.sourceResults(shoe) {
		if s.Round >= from && s.Round <= to {
			out = append(out, s)
		}
	}
	return out
}

func (r *Reconciler) journalBand(local ShoeState, cur signal.BackendCursor, d Decision) {
	if r.journal == nil {
		return
	}
	err := r.journal.Append(journal.CategorySync, "band_transition", map[string]any{
		"mode":   d.Mode.String(),
		"delta":  d.Delta,
		"local":  map[string]int{"shoe": local.Shoe, "round": local.Round},
		"remote": map[string]int{"shoe": cur.Shoe, "round": cur.Round},
	})
	if err != nil {
		r.log.Warn("journal band transition failed", "err", err)
	}
}
