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

// Package decode 負責將上游回應的原始位元組還原成文字。
//
// 上游端點的回應格式不受我們控制：同一個端點在不同時期觀測到
// gzip 框架、無框架 zlib、無標頭 deflate 與純文字四種形態，
// 偶爾還混入區域性 8-bit 編碼（GBK）。因此解碼採固定順序逐一嘗試，
// 單一策略失敗不回報，全數失敗才回傳 Warn 級錯誤。
package decode

import (
	"bytes"
	"encoding/hex"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/zintix-labs/tablewatch/errs"
)

// maxHexPreview 是解碼失敗時回報的 payload 前綴位元組數。
const maxHexPreview = 16

// Decode 依序嘗試各解碼策略，回傳第一個成功的文字結果。
//
// 順序（依實際觀測頻率排列）：
//  1. gzip 框架
//  2. zlib（含標頭）
//  3. raw deflate（無標頭）
//  4. 純 UTF-8
//  5. GBK（區域性 8-bit 編碼，最後手段）
//
// 純函式：相同輸入必得相同輸出，無任何副作用。
func Decode(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errs.NewWarn("decode: empty payload")
	}

	if text, ok := tryGzip(payload); ok {
		return text, nil
	}
	if text, ok := tryZlib(payload); ok {
		return text, nil
	}
	if text, ok := tryFlate(payload); ok {
		return text, nil
	}
	if utf8.Valid(payload) {
		return string(payload), nil
	}
	if text, ok := tryGBK(payload); ok {
		return text, nil
	}

	preview := payload
	if len(preview) > maxHexPreview {
		preview = preview[:maxHexPreview]
	}
	return "", errs.NewWithExtra(errs.Warn,
		"decode: all strategies exhausted",
		"prefix="+hex.EncodeToString(preview))
}

// tryGBK 以 GBK 解碼。x/text 的解碼器遇到非法位元組時不回錯誤，
// 而是代換成 U+FFFD，因此以代換字元是否出現判定成敗。
func tryGBK(payload []byte) (string, bool) {
	text, err := simplifiedchinese.GBK.NewDecoder().String(string(payload))
	if err != nil || strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}

func tryGzip(payload []byte) (string, bool) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", false
	}
	defer r.Close()
	return readText(r)
}

func tryZlib(payload []byte) (string, bool) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", false
	}
	defer r.Close()
	return readText(r)
}

func tryFlate(payload []byte) (string, bool) {
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()
	return readText(r)
}

// readText 讀取解壓縮串流並確認結果是合法 UTF-8。
// 解壓成功但內容不是文字時一樣視為策略失敗，讓後續策略接手。
func readText(r io.Reader) (string, bool) {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return "", false
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
