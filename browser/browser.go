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

// Package browser 封裝對桌台頁面的觀測能力：DOM 快照與畫面擷取。
//
// 實際的頁面自動化跑在獨立的 bridge 行程裡（登入流程不在本系統範圍），
// 本包透過其本機 HTTP 介面取得快照與 PNG 畫面，並負責牌面區域裁切。
package browser

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/signal"
)

// DomEvaluator 取得單次 DOM 快照。
type DomEvaluator interface {
	Snapshot(ctx context.Context) (signal.DomSnapshot, error)
}

// FrameCapturer 擷取目前畫面（PNG 位元組）。
type FrameCapturer interface {
	Frame(ctx context.Context) ([]byte, error)
}

// HTTPBridge 透過本機 bridge 行程的 HTTP 介面實作 DomEvaluator 與
// FrameCapturer。GET /snapshot 回傳 DOM 快照 JSON，GET /frame 回傳 PNG。
type HTTPBridge struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPBridge 建立 bridge 客戶端。
func NewHTTPBridge(baseURL string, timeout time.Duration) (*HTTPBridge, error) {
	if baseURL == "" {
		return nil, errs.NewFatal("browser: empty bridge url")
	}
	return &HTTPBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// Snapshot 取得單次 DOM 快照。
// bridge 失聯或快照帶頁面錯誤皆為 Warn 級，輪詢迴圈記錄後繼續。
func (b *HTTPBridge) Snapshot(ctx context.Context) (signal.DomSnapshot, error) {
	data, err := b.get(ctx, "/snapshot")
	if err != nil {
		return signal.DomSnapshot{}, err
	}
	var snap signal.DomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return signal.DomSnapshot{}, errs.NewWithExtra(errs.Warn, "browser: decode snapshot", err.Error())
	}
	if err := snap.Validate(); err != nil {
		return signal.DomSnapshot{}, err
	}
	return snap, nil
}

// Frame 擷取目前畫面的 PNG 位元組。
func (b *HTTPBridge) Frame(ctx context.Context) ([]byte, error) {
	data, err := b.get(ctx, "/frame")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errs.NewWarn("browser: empty frame")
	}
	return data, nil
}

func (b *HTTPBridge) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return nil, errs.Wrap(err, "browser: build request")
	}
	resp, err := b.hc.Do(req)
	if err != nil {
		return nil, errs.NewWithExtra(errs.Warn, "browser: bridge unreachable", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Warnf("browser: bridge status %d on %s", resp.StatusCode, path)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errs.NewWithExtra(errs.Warn, "browser: read response", err.Error())
	}
	return data, nil
}
