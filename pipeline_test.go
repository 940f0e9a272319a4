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

package tablewatch

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/browser"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/recognizer"
	"github.com/zintix-labs/tablewatch/recorder"
	"github.com/zintix-labs/tablewatch/sdk/codec"
	"github.com/zintix-labs/tablewatch/sdk/decode"
	"github.com/zintix-labs/tablewatch/spec"
)

// fakeSink 紀錄回報呼叫，可注入回報失敗。
type fakeSink struct {
	subs      []backend.ResultSubmission
	submitErr error
	starts    int
	ends      int
}

func (f *fakeSink) SubmitResult(ctx context.Context, sub backend.ResultSubmission) error {
	f.subs = append(f.subs, sub)
	return f.submitErr
}

func (f *fakeSink) StartSignal(ctx context.Context, shoe, round int) error {
	f.starts++
	return nil
}

func (f *fakeSink) EndSignal(ctx context.Context, shoe, round int) error {
	f.ends++
	return nil
}

// fakeFrames 回傳一張現成的 PNG 畫面。
type fakeFrames struct {
	frame []byte
	err   error
}

func (f *fakeFrames) Frame(ctx context.Context) ([]byte, error) {
	return f.frame, f.err
}

// fakeRecognizer 依序回覆佇列中的預測；佇列耗盡時重複最後一筆。
type fakeRecognizer struct {
	preds []recognizer.Prediction
	err   error
	calls int
}

func (f *fakeRecognizer) Predict(ctx context.Context, img []byte) (recognizer.Prediction, error) {
	f.calls++
	if f.err != nil {
		return recognizer.Prediction{}, f.err
	}
	i := f.calls - 1
	if i >= len(f.preds) {
		i = len(f.preds) - 1
	}
	return f.preds[i], nil
}

// fakeUpstream 回傳固定批次。
type fakeUpstream struct {
	batch decode.Batch
	err   error
}

func (f *fakeUpstream) FetchBatch(ctx context.Context) (decode.Batch, error) {
	return f.batch, f.err
}

func framePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return buf.Bytes()
}

func testRecognizeSetting() spec.RecognizeSetting {
	return spec.RecognizeSetting{CropThreshold: 0.2, FrameThreshold: 0.5}
}

func newTestPipeline(t *testing.T, sink *fakeSink, rec *fakeRecognizer, up *fakeUpstream) (*Pipeline, *recorder.RoundRecorder) {
	t.Helper()
	rcd := recorder.NewRoundRecorder("D1", 1)
	frames := &fakeFrames{frame: framePNG(t)}
	p := NewPipeline("D1", testRecognizeSetting(),
		frames, browser.NewCaptureAdapter(), rec,
		sink, up, codec.DefaultTable(), nil, rcd, nil)
	return p, rcd
}

func TestHandleRoundRecognized(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecognizer{preds: []recognizer.Prediction{
		{Rank: 13, Suit: "h", Confidence: 0.93},
		{Rank: 10, Suit: "r", Confidence: 0.88},
	}}
	p, rcd := newTestPipeline(t, sink, rec, &fakeUpstream{})

	sub, err := p.HandleRound(context.Background(), 1, 4, nil)
	if err != nil {
		t.Fatalf("handle round: %v", err)
	}
	if sub.Result != 1 || sub.Origin != recorder.OriginRecognized {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.DragonCard != "13|h" || sub.TigerCard != "10|r" {
		t.Fatalf("unexpected cards: %+v", sub)
	}
	if len(sink.subs) != 1 {
		t.Fatalf("expected exactly one submit, got %d", len(sink.subs))
	}
	if sink.starts != 1 || sink.ends != 1 {
		t.Fatalf("expected start/end signals, got %d/%d", sink.starts, sink.ends)
	}
	if got := rcd.ResultsForShoe(1); len(got) != 1 || got[0].Round != 4 {
		t.Fatalf("expected local copy of round 4, got %+v", got)
	}
}

func TestHandleRoundDegradedFallback(t *testing.T) {
	sink := &fakeSink{}
	// 信心不足，嚴格與寬鬆門檻皆不過。
	rec := &fakeRecognizer{preds: []recognizer.Prediction{
		{Rank: 7, Suit: "h", Confidence: 0.1},
	}}
	up := &fakeUpstream{batch: decode.Batch{Outcomes: []string{"10", "20"}, ShoeID: "S1"}}
	p, _ := newTestPipeline(t, sink, rec, up)

	sub, err := p.HandleRound(context.Background(), 1, 9, nil)
	if err != nil {
		t.Fatalf("handle round: %v", err)
	}
	if sub.Origin != recorder.OriginDegraded {
		t.Fatalf("expected degraded origin, got %q", sub.Origin)
	}
	// 最新結果碼 "20" → 和局，配固定牌面。
	if sub.Result != 3 || sub.DragonCard != "7|h" || sub.TigerCard != "7|r" {
		t.Fatalf("unexpected degraded submission: %+v", sub)
	}
	if len(sink.subs) != 1 {
		t.Fatalf("degraded round must still submit exactly once, got %d", len(sink.subs))
	}
}

func TestHandleRoundDegradedTigerCode(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecognizer{preds: []recognizer.Prediction{
		{Rank: 7, Suit: "h", Confidence: 0.1},
	}}
	up := &fakeUpstream{batch: decode.Batch{Outcomes: []string{"10", "30"}, ShoeID: "S1"}}
	p, _ := newTestPipeline(t, sink, rec, up)

	sub, err := p.HandleRound(context.Background(), 1, 3, nil)
	if err != nil {
		t.Fatalf("handle round: %v", err)
	}
	// 最新結果碼 "30" → 虎勝，配固定牌面。
	if sub.Result != 2 || sub.DragonCard != "8|h" || sub.TigerCard != "12|r" {
		t.Fatalf("unexpected degraded submission: %+v", sub)
	}
}

func TestHandleRoundDefaultFallback(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecognizer{err: errs.NewWarn("recognizer: sidecar unreachable")}
	up := &fakeUpstream{err: errs.NewWarn("upstream: all endpoints failing")}
	p, _ := newTestPipeline(t, sink, rec, up)

	sub, err := p.HandleRound(context.Background(), 2, 3, nil)
	if err != nil {
		t.Fatalf("handle round: %v", err)
	}
	if sub.Origin != recorder.OriginDefault {
		t.Fatalf("expected default origin, got %q", sub.Origin)
	}
	if sub.Result != 1 || sub.DragonCard != "0|0" || sub.TigerCard != "0|0" {
		t.Fatalf("unexpected default submission: %+v", sub)
	}
	if len(sink.subs) != 1 {
		t.Fatalf("default round must still submit exactly once, got %d", len(sink.subs))
	}
}

func TestHandleRoundSubmitErrorKeepsLocalCopy(t *testing.T) {
	sink := &fakeSink{submitErr: errs.NewWarn("backend: unavailable")}
	rec := &fakeRecognizer{preds: []recognizer.Prediction{
		{Rank: 5, Suit: "h", Confidence: 0.9},
		{Rank: 9, Suit: "r", Confidence: 0.9},
	}}
	p, rcd := newTestPipeline(t, sink, rec, &fakeUpstream{})

	if _, err := p.HandleRound(context.Background(), 1, 2, nil); err == nil {
		t.Fatalf("expected submit error to surface")
	}
	// 回報失敗不影響本地副本，對帳才能補傳。
	if got := rcd.ResultsForShoe(1); len(got) != 1 || got[0].Round != 2 {
		t.Fatalf("expected local copy despite submit failure, got %+v", got)
	}
}

func TestHandleRoundTieRecognized(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecognizer{preds: []recognizer.Prediction{
		{Rank: 7, Suit: "h", Confidence: 0.8},
		{Rank: 7, Suit: "r", Confidence: 0.8},
	}}
	p, _ := newTestPipeline(t, sink, rec, &fakeUpstream{})

	sub, err := p.HandleRound(context.Background(), 1, 1, nil)
	if err != nil {
		t.Fatalf("handle round: %v", err)
	}
	if sub.Result != 3 {
		t.Fatalf("equal ranks must report tie, got %+v", sub)
	}
}
