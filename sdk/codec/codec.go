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

// Package codec 在上游原始結果碼與本系統正準結果之間轉換。
//
// 上游來源不只一家：舊來源用字母碼（a/b/c），新來源用數字碼
// （10/20/30），兩者語意相同。對照表可由設定覆寫，未知碼不報錯，
// 回傳 Unknown 哨兵值交由上層決定如何處置。
package codec

// Winner 是一局的正準勝方。
type Winner uint8

const (
	// Unknown 表示對照表查無此碼。
	Unknown Winner = iota
	Dragon
	Tiger
	Tie
)

var winnerName = map[Winner]string{
	Unknown: "unknown",
	Dragon:  "dragon",
	Tiger:   "tiger",
	Tie:     "tie",
}

func (w Winner) String() string {
	if s, ok := winnerName[w]; ok {
		return s
	}
	return "unknown"
}

// Canonical 是單一結果碼轉換後的正準形態。
// Aux 保留給附加結果位（同注、例外局），本玩法固定為 AuxNone。
type Canonical struct {
	Winner Winner
	Aux    AuxFlag
}

// AuxFlag 是附加結果位。
type AuxFlag uint8

const (
	AuxNone AuxFlag = iota
)

// Table 是結果碼對照表。零值不可用，請用 NewTable 或 DefaultTable。
type Table struct {
	toCanonical map[string]Canonical
	toRaw       map[Winner]string
}

// DefaultTable 回傳內建對照表。
// 數字碼對應 10=龍勝、20=和局、30=虎勝；字母碼對應 a=龍勝、
// b=虎勝、c=和局（兩套碼的順序不同，不可互推）。
// 反向合成（fallback 用）採數字碼。
func DefaultTable() *Table {
	return NewTable(map[string]Winner{
		"10": Dragon, "20": Tie, "30": Tiger,
		"a": Dragon, "b": Tiger, "c": Tie,
	}, map[Winner]string{
		Dragon: "10", Tie: "20", Tiger: "30",
	})
}

// NewTable 以給定映射建立對照表。
// rawDefault 指定各勝方反向合成時使用的原始碼，缺項時從 mapping
// 中任取一個對應碼補上。
func NewTable(mapping map[string]Winner, rawDefault map[Winner]string) *Table {
	t := &Table{
		toCanonical: make(map[string]Canonical, len(mapping)),
		toRaw:       make(map[Winner]string, len(rawDefault)),
	}
	for code, w := range mapping {
		t.toCanonical[code] = Canonical{Winner: w, Aux: AuxNone}
	}
	for w, code := range rawDefault {
		t.toRaw[w] = code
	}
	for code, w := range mapping {
		if _, ok := t.toRaw[w]; !ok {
			t.toRaw[w] = code
		}
	}
	return t
}

// ToCanonical 將原始結果碼轉為正準形態。
// 查無此碼時回傳 Winner=Unknown，不視為錯誤。
func (t *Table) ToCanonical(code string) Canonical {
	if c, ok := t.toCanonical[code]; ok {
		return c
	}
	return Canonical{Winner: Unknown, Aux: AuxNone}
}

// ToRawDefault 回傳指定勝方的預設原始碼，供降級合成使用。
// Unknown 或查無對應時回傳空字串。
func (t *Table) ToRawDefault(w Winner) string {
	return t.toRaw[w]
}

// Known 回報對照表是否認得此碼。
func (t *Table) Known(code string) bool {
	_, ok := t.toCanonical[code]
	return ok
}
