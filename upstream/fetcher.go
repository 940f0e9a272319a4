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

// Package upstream 從來源端點抓取本靴結果批次。
//
// 端點可能有多個鏡像，連續失敗達設定次數即輪替到下一個；
// 回應位元組先經 decode.Decode 還原文字再解析成批次。
package upstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/decode"
	"github.com/zintix-labs/tablewatch/spec"
)

// 來源端點的 act 參數：0 為連線測試，3 為抓取本靴結果。
const (
	actPing  = 0
	actFetch = 3
)

// Fetcher 抓取並解析上游結果批次。併發安全。
type Fetcher struct {
	urls        []string
	sessionID   string
	username    string
	rotateAfter int
	hc          *http.Client
	log         *slog.Logger

	mu       sync.Mutex
	idx      int
	failures int
}

// New 依設定建立抓取器。至少要有一個端點。
func New(cfg spec.UpstreamSetting, log *slog.Logger) (*Fetcher, error) {
	if len(cfg.URLs) == 0 {
		return nil, errs.NewFatal("upstream: no endpoint urls")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		urls:        cfg.URLs,
		sessionID:   cfg.SessionID,
		username:    cfg.Username,
		rotateAfter: cfg.RotateAfter,
		hc:          &http.Client{Timeout: cfg.Timeout()},
		log:         log,
	}, nil
}

// FetchBatch 抓取本靴結果批次。
// 失敗計入輪替計數並回傳 Warn 級錯誤，由輪詢迴圈記錄後繼續。
func (f *Fetcher) FetchBatch(ctx context.Context) (decode.Batch, error) {
	text, err := f.request(ctx, actFetch)
	if err != nil {
		return decode.Batch{}, err
	}
	batch, err := decode.ParseBatch(text)
	if err != nil {
		f.recordFailure()
		return decode.Batch{}, err
	}
	f.recordSuccess()
	return batch, nil
}

// Ping 對目前端點做連線測試（act=0），不影響輪替計數。
func (f *Fetcher) Ping(ctx context.Context) error {
	_, err := f.requestAt(ctx, f.current(), actPing)
	return err
}

// Endpoint 回傳目前使用中的端點（觀測用）。
func (f *Fetcher) Endpoint() string { return f.current() }

func (f *Fetcher) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.urls[f.idx]
}

func (f *Fetcher) recordSuccess() {
	f.mu.Lock()
	f.failures = 0
	f.mu.Unlock()
}

// recordFailure 累計失敗並在達到門檻時輪替端點。
func (f *Fetcher) recordFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
	if f.rotateAfter > 0 && f.failures >= f.rotateAfter && len(f.urls) > 1 {
		f.idx = (f.idx + 1) % len(f.urls)
		f.failures = 0
		f.log.Warn("upstream endpoint rotated", "endpoint", f.urls[f.idx])
	}
}

func (f *Fetcher) request(ctx context.Context, act int) (string, error) {
	text, err := f.requestAt(ctx, f.current(), act)
	if err != nil {
		f.recordFailure()
		return "", err
	}
	return text, nil
}

func (f *Fetcher) requestAt(ctx context.Context, endpoint string, act int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errs.Wrap(err, "upstream: parse endpoint")
	}
	q := u.Query()
	q.Set("sessionID", f.sessionID)
	q.Set("username", f.username)
	q.Set("act", strconv.Itoa(act))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errs.Wrap(err, "upstream: build request")
	}
	resp, err := f.hc.Do(req)
	if err != nil {
		return "", errs.NewWithExtra(errs.Warn, "upstream: request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Warnf("upstream: unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errs.NewWithExtra(errs.Warn, "upstream: read response", err.Error())
	}
	return decode.Decode(raw)
}
