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

// Package signal 定義三類輸入訊號的具型別形態，以及追蹤器對外發布的事件。
//
// 輸入來源（DOM 快照、上游批次、後端游標）在邊界處即驗證成具型別
// 變體，核心邏輯不再接觸字串散表；來源欄位缺漏在這裡就攔下。
package signal

import (
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/decode"
)

// CardRect 是 DOM 回報的單一牌面區域（頁面座標，像素）。
type CardRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Valid 回報區域是否可用於裁切。
func (r CardRect) Valid() bool { return r.W > 0 && r.H > 0 }

// DomSnapshot 是單次 DOM 輪詢的結果。
//
// Countdown 為下注倒數秒數（頁面未顯示時為 nil）；RoundLabel 為頁面
// 局號文字（僅作邊緣觸發用，數值不可信）；Geometry 依序為龍側、虎側
// 牌面區域；Err 為頁面端攔截到的錯誤訊息（非空即此次輪詢無效）。
type DomSnapshot struct {
	Countdown    *int              `json:"countdown"`
	BetStatus    string            `json:"bet_status"`
	RoundLabel   string            `json:"round_label"`
	CardsVisible bool              `json:"cards_visible"`
	CardData     map[string]string `json:"card_data"`
	Geometry     []CardRect        `json:"geometry"`
	Err          string            `json:"err"`
}

// Validate 回報快照是否可供追蹤器使用。
func (s DomSnapshot) Validate() error {
	if s.Err != "" {
		return errs.NewWithExtra(errs.Warn, "signal: dom snapshot carries page error", s.Err)
	}
	return nil
}

// ApiBatch 是上游批次訊號，內嵌解析後的批次內容。
type ApiBatch struct {
	decode.Batch
}

// Validate 回報批次是否可供追蹤器使用。
// 空批次合法（代表本靴尚無已結束局）。
func (b ApiBatch) Validate() error {
	for _, code := range b.Outcomes {
		if code == "" {
			return errs.NewWarn("signal: batch contains empty outcome code")
		}
	}
	return nil
}

// BackendCursor 是後端回報的目前游標位置。
type BackendCursor struct {
	Shoe  int `json:"xue_number"`
	Round int `json:"pu_number"`
}

// Validate 回報游標是否可用；靴/局皆從 1 起算。
func (c BackendCursor) Validate() error {
	if c.Shoe < 1 || c.Round < 1 {
		return errs.Warnf("signal: cursor out of range: shoe=%d round=%d", c.Shoe, c.Round)
	}
	return nil
}
