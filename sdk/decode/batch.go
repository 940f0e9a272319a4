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

package decode

import (
	"net/url"
	"strings"

	"github.com/zintix-labs/tablewatch/errs"
)

// Batch 是上游單次回應解析後的結果批次。
// Outcomes 為本靴已結束局的原始結果碼（依局序排列），
// ShoeID 為上游的靴識別碼（xue），GameID 為桌台識別碼。
type Batch struct {
	Outcomes []string
	ShoeID   string
	GameID   string
}

// Count 回傳批次內的結果筆數。
func (b Batch) Count() int { return len(b.Outcomes) }

// Signature 回傳批次的弱簽章，供追蹤器辨識重複批次。
// 同靴同內容的批次必得相同簽章即可，不需抗碰撞。
func (b Batch) Signature() string {
	return b.ShoeID + "/" + strings.Join(b.Outcomes, "#")
}

// ParseBatch 解析上游回應文字（query-string 形態）。
//
// 格式：`result=10#20#30&xue=S12&gameID=77`。
// result 欄位以 `#` 分隔，空字串代表本靴尚無已結束局（合法，筆數 0）；
// 缺少 result 鍵才視為格式錯誤。分隔後的空白項目一律捨棄。
func ParseBatch(text string) (Batch, error) {
	values, err := url.ParseQuery(text)
	if err != nil {
		return Batch{}, errs.NewWithExtra(errs.Warn,
			"decode: malformed batch payload", err.Error())
	}
	if !values.Has("result") {
		return Batch{}, errs.NewWarn("decode: batch payload missing result field")
	}

	raw := values.Get("result")
	var outcomes []string
	for _, code := range strings.Split(raw, "#") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		outcomes = append(outcomes, code)
	}

	return Batch{
		Outcomes: outcomes,
		ShoeID:   values.Get("xue"),
		GameID:   values.Get("gameID"),
	}, nil
}
