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
	"sync"
	"sync/atomic"
	"time"
)

// EventKind 是追蹤器對外事件的種類。
type EventKind uint8

const (
	// RoundAdvanced 表示偵測到新局開始（開牌擷取的觸發點）。
	RoundAdvanced EventKind = iota + 1
	// ShoeAdvanced 表示偵測到換靴。
	ShoeAdvanced
	// DriftDetected 表示本地與後端游標出現偏移。
	DriftDetected
)

var eventKindName = map[EventKind]string{
	RoundAdvanced: "round_advanced",
	ShoeAdvanced:  "shoe_advanced",
	DriftDetected: "drift_detected",
}

func (k EventKind) String() string {
	if s, ok := eventKindName[k]; ok {
		return s
	}
	return "unknown"
}

// Event 是追蹤器發布的單一事件。Shoe/Round 為事件發生後的狀態。
type Event struct {
	Kind  EventKind
	Shoe  int
	Round int
	At    time.Time
	Note  string
}

// Bus 是非阻塞的事件通道：緩衝滿時丟棄並計數，絕不阻塞發布端。
// 追蹤器的狀態轉移在輪詢迴圈內進行，不能被慢速消費者拖住。
type Bus struct {
	ch        chan Event
	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewBus 建立指定緩衝大小的事件通道，size <= 0 時使用 16。
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 16
	}
	return &Bus{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Publish 發布事件。緩衝滿或已關閉時丟棄並回傳 false。
func (b *Bus) Publish(ev Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case <-b.done:
		b.dropped.Add(1)
		return false
	default:
	}
	select {
	case b.ch <- ev:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// C 回傳事件接收通道。Close 後通道會被關閉。
func (b *Bus) C() <-chan Event { return b.ch }

// Dropped 回傳累計丟棄的事件數。
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close 關閉通道。可重入。須在發布端停止後呼叫；
// 消費端以通道關閉作為結束訊號。
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		close(b.ch)
	})
}
