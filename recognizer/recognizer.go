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

// Package recognizer 定義牌面辨識介面與推論旁路服務的 HTTP 實作。
// 模型內部不在本系統範圍；這裡只負責把裁切影像送出去、把預測接回來。
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/zintix-labs/tablewatch/corefmt"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/card"
	"github.com/zintix-labs/tablewatch/spec"
)

// Prediction 是單張影像的辨識結果。
// Confidence 介於 [0,1]；Rank 0 表示模型認為無牌面。
type Prediction struct {
	Rank       int     `json:"rank"`
	Suit       string  `json:"suit"`
	Confidence float64 `json:"confidence"`
}

// Face 依信心門檻將預測轉為牌面。
// 低於門檻或點數非法時回傳未知牌面與 false。
func (p Prediction) Face(threshold float64) (card.CardFace, bool) {
	if p.Confidence < threshold || p.Rank < 1 || p.Rank > 13 {
		return card.Unknown(), false
	}
	return card.CardFace{Rank: p.Rank, Suit: p.Suit}, true
}

// Recognizer 是牌面辨識能力的抽象。實作需遵守 ctx 取消與逾時。
type Recognizer interface {
	Predict(ctx context.Context, image []byte) (Prediction, error)
}

// HTTPRecognizer 透過本機推論旁路服務辨識牌面。
// 影像以 base64 包進 JSON 送出，與旁路服務的介面對齊。
type HTTPRecognizer struct {
	endpoint string
	hc       *http.Client
}

// NewHTTP 依設定建立旁路服務客戶端。
func NewHTTP(cfg spec.RecognizeSetting) (*HTTPRecognizer, error) {
	if cfg.Endpoint == "" {
		return nil, errs.NewFatal("recognizer: empty endpoint")
	}
	return &HTTPRecognizer{
		endpoint: cfg.Endpoint,
		hc:       &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

// Predict 送出影像並取回預測。
// 旁路服務失聯或回傳非 200 為 Warn 級：辨識失敗走降級路徑，不中斷輪詢。
func (r *HTTPRecognizer) Predict(ctx context.Context, image []byte) (Prediction, error) {
	if len(image) == 0 {
		return Prediction{}, errs.NewWarn("recognizer: empty image")
	}

	body, err := json.Marshal(map[string]string{
		"image": corefmt.EncodeJSONBytes(image),
	})
	if err != nil {
		return Prediction{}, errs.Wrap(err, "recognizer: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, errs.Wrap(err, "recognizer: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.hc.Do(req)
	if err != nil {
		return Prediction{}, errs.NewWithExtra(errs.Warn, "recognizer: sidecar unreachable", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, errs.Warnf("recognizer: sidecar status %d", resp.StatusCode)
	}

	var pred Prediction
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&pred); err != nil {
		return Prediction{}, errs.NewWithExtra(errs.Warn, "recognizer: decode prediction", err.Error())
	}
	return pred, nil
}
