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

// Package card 定義牌面型別、線格式與龍虎比牌裁決。
package card

import (
	"strconv"
	"strings"

	"github.com/zintix-labs/tablewatch/errs"
)

// 線格式的未知占位符：點數與花色皆為 "0"。
const unknownToken = "0"

// CardFace 是單張牌面。
// Rank 1..13（A=1、J=11、Q=12、K=13），0 表示未知。
// Suit 為花色線碼（s/h/c/d），未知為 "0"；裁決只看 Rank，
// Suit 僅供回報與記錄，解析時原樣保留不認識的碼。
type CardFace struct {
	Rank int
	Suit string
}

// Known 回報點數是否已確定。
func (c CardFace) Known() bool { return c.Rank >= 1 && c.Rank <= 13 }

// Wire 回傳線格式 "7|h"；未知牌面固定為 "0|0"。
func (c CardFace) Wire() string {
	if !c.Known() {
		return unknownToken + "|" + unknownToken
	}
	suit := c.Suit
	if suit == "" {
		suit = unknownToken
	}
	return strconv.Itoa(c.Rank) + "|" + suit
}

// Unknown 回傳未知牌面。
func Unknown() CardFace { return CardFace{} }

// Parse 解析線格式字串。
// "0|0" 解析為未知牌面（非錯誤）；點數超出 0..13 或缺少分隔符
// 視為格式錯誤（Warn 級）。
func Parse(wire string) (CardFace, error) {
	rankStr, suit, ok := strings.Cut(wire, "|")
	if !ok {
		return CardFace{}, errs.NewWithExtra(errs.Warn,
			"card: malformed wire format", wire)
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil || rank < 0 || rank > 13 {
		return CardFace{}, errs.NewWithExtra(errs.Warn,
			"card: rank out of range", wire)
	}
	if rank == 0 {
		return Unknown(), nil
	}
	return CardFace{Rank: rank, Suit: suit}, nil
}
