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

// Package backend 是結果回報後端的 HTTP 客戶端。
//
// 後端以 (desk, xue, pu) 為主鍵做 upsert，所有寫入端點皆可安全重送；
// 客戶端因此對網路錯誤與 5xx 一律重試。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/codec"
	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
)

// ResultSubmission 是單局開牌結果的回報內容。
// Result 為正準結果碼（1=龍 2=虎 3=和），Ext 固定 "0"（本玩法無附加位），
// 牌面為線格式字串，Origin 標記結果來源層級
// （recognized / degraded-fallback / default-fallback）。
type ResultSubmission struct {
	DeskID     string `json:"desk_id"`
	Shoe       int    `json:"xue_number"`
	Round      int    `json:"pu_number"`
	Result     int    `json:"result"`
	Ext        string `json:"ext"`
	DragonCard string `json:"dragon_card"`
	TigerCard  string `json:"tiger_card"`
	Origin     string `json:"origin"`
}

// WinnerResult 將正準勝方轉為後端結果碼；Unknown 回傳 0。
func WinnerResult(w codec.Winner) int {
	switch w {
	case codec.Dragon:
		return 1
	case codec.Tiger:
		return 2
	case codec.Tie:
		return 3
	default:
		return 0
	}
}

// ResultWinner 是 WinnerResult 的反向對照（回放、對帳讀取用）。
func ResultWinner(code int) codec.Winner {
	switch code {
	case 1:
		return codec.Dragon
	case 2:
		return codec.Tiger
	case 3:
		return codec.Tie
	default:
		return codec.Unknown
	}
}

// RoundResult 是後端回傳的歷史局結果。
type RoundResult struct {
	Shoe   int `json:"xue_number"`
	Round  int `json:"pu_number"`
	Result int `json:"result"`
}

// Client 是後端 HTTP 客戶端。
type Client struct {
	baseURL string
	deskID  string
	retry   int
	hc      *http.Client
	log     *slog.Logger
}

// New 依設定建立客戶端。
func New(cfg spec.BackendSetting, deskID string, log *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errs.NewFatal("backend: empty base_url")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		deskID:  deskID,
		retry:   cfg.Retry,
		hc:      &http.Client{Timeout: cfg.Timeout()},
		log:     log,
	}, nil
}

// SubmitResult 回報單局開牌結果（upsert：同鍵重送覆寫）。
func (c *Client) SubmitResult(ctx context.Context, sub ResultSubmission) error {
	if sub.DeskID == "" {
		sub.DeskID = c.deskID
	}
	return c.postJSON(ctx, "/api/submit_result", sub, nil)
}

// CurrentCursor 取得後端目前游標（靴號、下一局局號）。
func (c *Client) CurrentCursor(ctx context.Context) (signal.BackendCursor, error) {
	var cur signal.BackendCursor
	q := url.Values{"desk_id": {c.deskID}}
	if err := c.getJSON(ctx, "/api/get_current_xue_pu", q, &cur); err != nil {
		return signal.BackendCursor{}, err
	}
	if err := cur.Validate(); err != nil {
		return signal.BackendCursor{}, err
	}
	return cur, nil
}

// LastNResults 取得最近 n 局結果（新到舊）。
func (c *Client) LastNResults(ctx context.Context, n int) ([]RoundResult, error) {
	var out []RoundResult
	q := url.Values{"desk_id": {c.deskID}, "n": {strconv.Itoa(n)}}
	if err := c.getJSON(ctx, "/api/get_last_n_results", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceShoe 通知後端開新靴。
// 呼叫端以 fire-and-forget 方式使用：失敗只記錄，不阻斷換靴流程。
func (c *Client) AdvanceShoe(ctx context.Context) error {
	return c.postJSON(ctx, "/api/add_xue", map[string]string{"desk_id": c.deskID}, nil)
}

// SyncIncremental 增量補傳缺漏的局結果（upsert）。
func (c *Client) SyncIncremental(ctx context.Context, results []ResultSubmission) error {
	payload := map[string]any{"desk_id": c.deskID, "results": results}
	return c.postJSON(ctx, "/api/sync_incremental", payload, nil)
}

// DeleteAndResync 要求後端捨棄本靴資料並以給定結果重建。
func (c *Client) DeleteAndResync(ctx context.Context, results []ResultSubmission) error {
	payload := map[string]any{"desk_id": c.deskID, "results": results}
	return c.postJSON(ctx, "/api/delete_and_resync", payload, nil)
}

// StartSignal 回報一局開始（下注關閉、即將開牌）。
func (c *Client) StartSignal(ctx context.Context, shoe, round int) error {
	payload := map[string]any{"desk_id": c.deskID, "xue_number": shoe, "pu_number": round}
	return c.postJSON(ctx, "/api/start_signal", payload, nil)
}

// EndSignal 回報一局結束。
func (c *Client) EndSignal(ctx context.Context, shoe, round int) error {
	payload := map[string]any{"desk_id": c.deskID, "xue_number": shoe, "pu_number": round}
	return c.postJSON(ctx, "/api/end_signal", payload, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "backend: marshal payload")
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, body, out)
}

// do 送出請求並套用重試。網路錯誤與 5xx 重試；4xx 為呼叫端問題，
// 直接回報不重試。
func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	attempts := c.retry
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errs.Wrap(ctx.Err(), "backend: request canceled")
			case <-time.After(time.Duration(i) * 200 * time.Millisecond):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return errs.Wrap(err, "backend: build request")
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return errs.NewWithExtra(errs.Warn,
				fmt.Sprintf("backend: %s rejected with status %d", u, resp.StatusCode),
				strings.TrimSpace(string(data)))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return errs.NewWithExtra(errs.Warn, "backend: decode response", err.Error())
			}
		}
		return nil
	}
	return errs.NewWithExtra(errs.Warn,
		fmt.Sprintf("backend: %s failed after %d attempts", u, attempts),
		fmt.Sprint(lastErr))
}
