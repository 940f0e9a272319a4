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

package recorder

import (
	"sync"

	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/sdk/codec"
	"github.com/zintix-labs/tablewatch/stats"
)

// 結果來源層級標記（回報 payload 的 origin 欄位）。
const (
	OriginRecognized = "recognized"
	OriginDegraded   = "degraded-fallback"
	OriginDefault    = "default-fallback"
)

// RoundRecorder 桌台紀錄員
//
// RoundRecorder 負責累積本靴的回報結果與辨識品質，
// 透過 Done 輸出統計報表；同時保存已回報結果的本地權威副本，
// 供對帳補傳使用。換靴時 Reset。
type RoundRecorder struct {
	DeskID string

	mu    sync.Mutex
	shoe  int
	basic *BasicRecord
	subs  []backend.ResultSubmission
}

// BasicRecord 基本結果資料紀錄
type BasicRecord struct {
	Rounds     int
	DragonWins int
	TigerWins  int
	Ties       int

	Recognized int
	Degraded   int
	Defaulted  int

	ConfSum   float64
	ConfSqSum float64 // 平方和
	ConfN     int
}

func NewRoundRecorder(deskID string, shoe int) *RoundRecorder {
	return &RoundRecorder{
		DeskID: deskID,
		shoe:   shoe,
		basic:  new(BasicRecord),
	}
}

// Record 登錄一局的回報結果。
// confidence 僅在 origin 為辨識成功時有意義，其餘層級傳 0。
func (r *RoundRecorder) Record(sub backend.ResultSubmission, winner codec.Winner, origin string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.basic.Rounds++
	switch winner {
	case codec.Dragon:
		r.basic.DragonWins++
	case codec.Tiger:
		r.basic.TigerWins++
	case codec.Tie:
		r.basic.Ties++
	}

	switch origin {
	case OriginRecognized:
		r.basic.Recognized++
		r.basic.ConfSum += confidence
		r.basic.ConfSqSum += confidence * confidence
		r.basic.ConfN++
	case OriginDegraded:
		r.basic.Degraded++
	case OriginDefault:
		r.basic.Defaulted++
	}

	// 同局重送覆寫本地副本（與後端 upsert 對齊）。
	for i := range r.subs {
		if r.subs[i].Shoe == sub.Shoe && r.subs[i].Round == sub.Round {
			r.subs[i] = sub
			return
		}
	}
	r.subs = append(r.subs, sub)
}

// ResultsForShoe 回傳指定靴的已回報結果副本（對帳補傳用）。
func (r *RoundRecorder) ResultsForShoe(shoe int) []backend.ResultSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	if shoe != r.shoe {
		return nil
	}
	out := make([]backend.ResultSubmission, len(r.subs))
	copy(out, r.subs)
	return out
}

// Shoe 回傳目前累積中的靴號。
func (r *RoundRecorder) Shoe() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shoe
}

// Reset 換靴：清空累積，開始記錄新靴。
func (r *RoundRecorder) Reset(shoe int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shoe = shoe
	r.basic = new(BasicRecord)
	r.subs = nil
}

// Done 輸出目前累積的統計報表。不清空，可於靴中途呼叫。
func (r *RoundRecorder) Done() *stats.ShoeReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.basic
	n := b.Rounds

	dragonHat, dragonCI := stats.ProportionCICP(b.DragonWins, n, 0.95)
	tigerHat, tigerCI := stats.ProportionCICP(b.TigerWins, n, 0.95)
	tieHat, tieCI := stats.ProportionCICP(b.Ties, n, 0.95)
	degradeHat, degradeCI := stats.ProportionCICP(b.Degraded+b.Defaulted, n, 0.95)
	mean, std, meanCI := stats.MeanCI(b.ConfSum, b.ConfSqSum, b.ConfN, 0.95)

	return &stats.ShoeReport{
		Summary: &stats.SummaryReport{
			DeskID: r.DeskID,
			Shoe:   r.shoe,
			Rounds: n,
		},
		Outcome: &stats.OutcomeReport{
			DragonWins: b.DragonWins,
			TigerWins:  b.TigerWins,
			Ties:       b.Ties,
			DragonRate: stats.PointStat{Hat: dragonHat, CI: dragonCI},
			TigerRate:  stats.PointStat{Hat: tigerHat, CI: tigerCI},
			TieRate:    stats.PointStat{Hat: tieHat, CI: tieCI},
		},
		Origin: &stats.OriginReport{
			Recognized:  b.Recognized,
			Degraded:    b.Degraded,
			Defaulted:   b.Defaulted,
			DegradeRate: stats.PointStat{Hat: degradeHat, CI: degradeCI},
		},
		Confidence: &stats.ConfidenceReport{
			Samples: b.ConfN,
			Mean:    mean,
			Std:     std,
			MeanCI:  meanCI,
		},
	}
}
