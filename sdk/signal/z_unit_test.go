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

package signal

import (
	"testing"

	"github.com/zintix-labs/tablewatch/sdk/decode"
)

func TestDomSnapshotValidate(t *testing.T) {
	ok := DomSnapshot{RoundLabel: "局 12"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := DomSnapshot{Err: "timeout waiting for selector"}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for snapshot with page error")
	}
}

func TestApiBatchValidate(t *testing.T) {
	empty := ApiBatch{}
	if err := empty.Validate(); err != nil {
		t.Fatalf("empty batch must be valid: %v", err)
	}
	bad := ApiBatch{Batch: decode.Batch{Outcomes: []string{"10", ""}}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for empty outcome code")
	}
}

func TestBackendCursorValidate(t *testing.T) {
	if err := (BackendCursor{Shoe: 1, Round: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (BackendCursor{Shoe: 0, Round: 3}).Validate(); err == nil {
		t.Fatalf("expected error for zero shoe")
	}
}

func TestBusPublishAndDrop(t *testing.T) {
	b := NewBus(2)
	if !b.Publish(Event{Kind: RoundAdvanced, Shoe: 1, Round: 2}) {
		t.Fatalf("publish into empty buffer must succeed")
	}
	if !b.Publish(Event{Kind: RoundAdvanced, Shoe: 1, Round: 3}) {
		t.Fatalf("publish into non-full buffer must succeed")
	}
	if b.Publish(Event{Kind: ShoeAdvanced, Shoe: 2, Round: 1}) {
		t.Fatalf("publish into full buffer must drop")
	}
	if b.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", b.Dropped())
	}

	ev := <-b.C()
	if ev.Kind != RoundAdvanced || ev.Round != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.At.IsZero() {
		t.Fatalf("publish must stamp event time")
	}
}

func TestBusClose(t *testing.T) {
	b := NewBus(1)
	b.Close()
	b.Close() // 可重入
	if b.Publish(Event{Kind: DriftDetected}) {
		t.Fatalf("publish after close must drop")
	}
	if _, open := <-b.C(); open {
		t.Fatalf("channel must be closed")
	}
}

func TestEventKindString(t *testing.T) {
	if RoundAdvanced.String() != "round_advanced" ||
		ShoeAdvanced.String() != "shoe_advanced" ||
		DriftDetected.String() != "drift_detected" {
		t.Fatalf("unexpected event kind names")
	}
}
