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

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/codec"
	"github.com/zintix-labs/tablewatch/spec"
)

func newTestClient(t *testing.T, handler http.Handler, retry int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(spec.BackendSetting{BaseURL: srv.URL, TimeoutMS: 2000, Retry: retry}, "7", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestSubmitResult(t *testing.T) {
	var got ResultSubmission
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/submit_result" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}), 1)

	sub := ResultSubmission{
		Shoe: 2, Round: 15, Result: WinnerResult(codec.Dragon),
		Ext: "0", DragonCard: "13|h", TigerCard: "10|r", Origin: "recognized",
	}
	if err := c.SubmitResult(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.DeskID != "7" {
		t.Fatalf("client must fill desk id, got %q", got.DeskID)
	}
	if got.Result != 1 || got.Ext != "0" {
		t.Fatalf("unexpected submission: %+v", got)
	}
}

func TestUpsertRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), 3)

	if err := c.SubmitResult(context.Background(), ResultSubmission{Shoe: 1, Round: 1, Result: 3, Ext: "0"}); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad desk", http.StatusBadRequest)
	}), 3)

	err := c.SubmitResult(context.Background(), ResultSubmission{})
	if err == nil {
		t.Fatalf("expected error on 4xx")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not retry, got %d attempts", calls.Load())
	}
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
		t.Fatalf("expected warn-level error, got %v", err)
	}
}

func TestRetryExhaustedIsWarn(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	err := c.AdvanceShoe(context.Background())
	if err == nil {
		t.Fatalf("expected error after retries exhausted")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if errs.IsFatal(err) {
		t.Fatalf("transport failure must stay warn-level: %v", err)
	}
}

func TestCurrentCursor(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get_current_xue_pu" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("desk_id") != "7" {
			t.Errorf("missing desk_id query")
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"xue_number": 3, "pu_number": 21})
	}), 1)

	cur, err := c.CurrentCursor(context.Background())
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cur.Shoe != 3 || cur.Round != 21 {
		t.Fatalf("unexpected cursor: %+v", cur)
	}
}

func TestCurrentCursorRejectsInvalid(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"xue_number": 0, "pu_number": 0})
	}), 1)
	if _, err := c.CurrentCursor(context.Background()); err == nil {
		t.Fatalf("expected validation error for zero cursor")
	}
}

func TestLastNResults(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("n") != "5" {
			t.Errorf("missing n query")
		}
		_ = json.NewEncoder(w).Encode([]RoundResult{
			{Shoe: 2, Round: 14, Result: 1},
			{Shoe: 2, Round: 13, Result: 2},
		})
	}), 1)

	results, err := c.LastNResults(context.Background(), 5)
	if err != nil {
		t.Fatalf("last n: %v", err)
	}
	if len(results) != 2 || results[0].Round != 14 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSyncEndpoints(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var payload struct {
			DeskID  string             `json:"desk_id"`
			Results []ResultSubmission `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		if payload.DeskID != "7" {
			t.Errorf("missing desk id in %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}), 1)

	results := []ResultSubmission{{Shoe: 1, Round: 9, Result: 2, Ext: "0"}}
	if err := c.SyncIncremental(context.Background(), results); err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if err := c.DeleteAndResync(context.Background(), results); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/api/sync_incremental" || paths[1] != "/api/delete_and_resync" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestWinnerResult(t *testing.T) {
	if WinnerResult(codec.Dragon) != 1 || WinnerResult(codec.Tiger) != 2 ||
		WinnerResult(codec.Tie) != 3 || WinnerResult(codec.Unknown) != 0 {
		t.Fatalf("unexpected winner result codes")
	}
}
