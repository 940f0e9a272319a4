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

package card

import (
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/codec"
)

// ErrInsufficientData 表示任一側牌面未知，無法裁決。
// Warn 級：呼叫端應轉入降級路徑，而非中止流程。
var ErrInsufficientData = errs.NewWarn("card: insufficient data to resolve round")

// Resolve 以整數點數比較裁決一局。
// 點數高者勝，相等為和局；任一側未知回傳 ErrInsufficientData。
// 純函式且具交換對稱性：Resolve(a,b) 為龍勝 ⟺ Resolve(b,a) 為虎勝。
func Resolve(dragon, tiger CardFace) (codec.Winner, error) {
	if !dragon.Known() || !tiger.Known() {
		return codec.Unknown, ErrInsufficientData
	}
	switch {
	case dragon.Rank > tiger.Rank:
		return codec.Dragon, nil
	case dragon.Rank < tiger.Rank:
		return codec.Tiger, nil
	default:
		return codec.Tie, nil
	}
}

// cannedPairs 是降級合成用的固定牌面組合，與各勝方的裁決結果一致。
var cannedPairs = map[codec.Winner][2]CardFace{
	codec.Dragon: {{Rank: 13, Suit: "h"}, {Rank: 10, Suit: "r"}},
	codec.Tiger:  {{Rank: 8, Suit: "h"}, {Rank: 12, Suit: "r"}},
	codec.Tie:    {{Rank: 7, Suit: "h"}, {Rank: 7, Suit: "r"}},
}

// CannedPair 回傳指定勝方的固定牌面組合（龍側、虎側）。
// 辨識不足時以此合成可回報的牌面；Unknown 或非法勝方回傳兩張未知牌。
func CannedPair(w codec.Winner) (dragon, tiger CardFace) {
	if pair, ok := cannedPairs[w]; ok {
		return pair[0], pair[1]
	}
	return Unknown(), Unknown()
}
