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

package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zintix-labs/tablewatch/sdk/signal"
)

// testFrame 產生左半紅、右半藍的 PNG 測試畫面。
func testFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode crop: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestCropWithDomGeometry(t *testing.T) {
	frame := testFrame(t, 200, 100)
	a := NewCaptureAdapter()
	geo := []signal.CardRect{
		{X: 10, Y: 20, W: 30, H: 40},
		{X: 120, Y: 20, W: 30, H: 40},
	}
	dragon, tiger, err := a.Crop(frame, geo)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if w, h := decodeSize(t, dragon); w != 30 || h != 40 {
		t.Fatalf("dragon crop %dx%d, want 30x40", w, h)
	}
	if w, h := decodeSize(t, tiger); w != 30 || h != 40 {
		t.Fatalf("tiger crop %dx%d, want 30x40", w, h)
	}
}

func TestCropProportionalFallback(t *testing.T) {
	frame := testFrame(t, 200, 100)
	a := NewCaptureAdapter()

	// 幾何缺漏與不合法格子都要退回比例估算。
	for _, geo := range [][]signal.CardRect{
		nil,
		{{X: 10, Y: 10, W: 30, H: 40}},
		{{X: 10, Y: 10, W: 0, H: 40}, {X: 50, Y: 10, W: 30, H: 40}},
	} {
		dragon, tiger, err := a.Crop(frame, geo)
		if err != nil {
			t.Fatalf("crop fallback: %v", err)
		}
		if w, h := decodeSize(t, dragon); w != int(0.14*200) || h != int(0.24*100) {
			t.Fatalf("dragon fallback crop %dx%d", w, h)
		}
		if len(tiger) == 0 {
			t.Fatalf("empty tiger crop")
		}
	}
}

func TestCropRejectsOutOfFrameGeometry(t *testing.T) {
	frame := testFrame(t, 100, 50)
	a := NewCaptureAdapter()
	geo := []signal.CardRect{
		{X: 500, Y: 500, W: 30, H: 40},
		{X: 600, Y: 500, W: 30, H: 40},
	}
	if _, _, err := a.Crop(frame, geo); err == nil {
		t.Fatalf("expected error for geometry outside frame")
	}
}

func TestCropRejectsNonPNG(t *testing.T) {
	a := NewCaptureAdapter()
	if _, _, err := a.Crop([]byte("not a png"), nil); err == nil {
		t.Fatalf("expected error for invalid frame")
	}
}

func TestHTTPBridgeSnapshotAndFrame(t *testing.T) {
	frame := testFrame(t, 20, 10)
	countdown := 12
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snapshot":
			_ = json.NewEncoder(w).Encode(signal.DomSnapshot{
				Countdown:    &countdown,
				BetStatus:    "closed",
				RoundLabel:   "局 33",
				CardsVisible: true,
			})
		case "/frame":
			_, _ = w.Write(frame)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b, err := NewHTTPBridge(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	snap, err := b.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.RoundLabel != "局 33" || !snap.CardsVisible || snap.Countdown == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	got, err := b.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("frame bytes mismatch")
	}
}

func TestHTTPBridgeSnapshotPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signal.DomSnapshot{Err: "selector timeout"})
	}))
	defer srv.Close()

	b, err := NewHTTPBridge(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	if _, err := b.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected error for snapshot with page error")
	}
}

func TestFrameArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.bin")
	a, err := OpenFrameArchive(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	frames := [][]byte{{1, 2, 3}, {4, 5}, {6}}
	for _, f := range frames {
		if err := a.Save(f); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadFrames(path, 1<<20)
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	if len(got) != 3 || !bytes.Equal(got[0], frames[0]) || !bytes.Equal(got[2], frames[2]) {
		t.Fatalf("unexpected frames: %v", got)
	}
}
