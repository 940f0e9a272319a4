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
	"context"
	"log/slog"

	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/browser"
	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/recognizer"
	"github.com/zintix-labs/tablewatch/recorder"
	"github.com/zintix-labs/tablewatch/sdk/card"
	"github.com/zintix-labs/tablewatch/sdk/codec"
	"github.com/zintix-labs/tablewatch/sdk/decode"
	"github.com/zintix-labs/tablewatch/sdk/signal"
	"github.com/zintix-labs/tablewatch/spec"
)

// ResultSink 是回報路徑需要的後端寫入面。*backend.Client 滿足此介面。
type ResultSink interface {
	SubmitResult(ctx context.Context, sub backend.ResultSubmission) error
	StartSignal(ctx context.Context, shoe, round int) error
	EndSignal(ctx context.Context, shoe, round int) error
}

// BatchFetcher 是降級路徑需要的上游讀取面。*upstream.Fetcher 滿足此介面。
type BatchFetcher interface {
	FetchBatch(ctx context.Context) (decode.Batch, error)
}

// Pipeline 把「新局開始」事件走完到「結果回報」：
// 擷取 → 裁切 → 辨識 → 裁決 → 回報，辨識不足時逐層降級，
// 每局必定回報恰好一次。
type Pipeline struct {
	deskID   string
	cfg      spec.RecognizeSetting
	frames   browser.FrameCapturer
	crop     *browser.CaptureAdapter
	rec      recognizer.Recognizer
	sink     ResultSink
	upstream BatchFetcher
	table    *codec.Table
	journal  *journal.Journal
	recorder *recorder.RoundRecorder
	archive  *browser.FrameArchive
	log      *slog.Logger
}

// AttachArchive 掛上畫面存檔：辨識失敗走降級時保留該幀，
// 供離線重跑辨識與除錯。nil 表示不存檔。
func (p *Pipeline) AttachArchive(a *browser.FrameArchive) { p.archive = a }

// NewPipeline 組裝回報管線。journal 可為 nil。
func NewPipeline(deskID string, cfg spec.RecognizeSetting,
	frames browser.FrameCapturer, crop *browser.CaptureAdapter, rec recognizer.Recognizer,
	sink ResultSink, up BatchFetcher, table *codec.Table,
	jnl *journal.Journal, rcd *recorder.RoundRecorder, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if crop == nil {
		crop = browser.NewCaptureAdapter()
	}
	return &Pipeline{
		deskID: deskID, cfg: cfg,
		frames: frames, crop: crop, rec: rec,
		sink: sink, upstream: up, table: table,
		journal: jnl, recorder: rcd, log: log,
	}
}

// roundOutcome 是管線內部裁決後、回報前的中間結果。
type roundOutcome struct {
	winner     codec.Winner
	dragon     card.CardFace
	tiger      card.CardFace
	origin     string
	confidence float64
}

// HandleRound 處理一局：裁決（含降級）後回報。
// 回傳實際送出的回報內容；只有回報本身失敗才回傳錯誤，
// 此時本地副本仍已登錄，缺局由對帳補傳收尾。
func (p *Pipeline) HandleRound(ctx context.Context, shoe, round int, geometry []signal.CardRect) (backend.ResultSubmission, error) {
	if err := p.sink.StartSignal(ctx, shoe, round); err != nil {
		p.log.Warn("start signal failed", "shoe", shoe, "round", round, "err", err)
	}

	out := p.resolveWithFallback(ctx, shoe, round, geometry)

	sub := backend.ResultSubmission{
		DeskID:     p.deskID,
		Shoe:       shoe,
		Round:      round,
		Result:     backend.WinnerResult(out.winner),
		Ext:        "0",
		DragonCard: out.dragon.Wire(),
		TigerCard:  out.tiger.Wire(),
		Origin:     out.origin,
	}

	if p.recorder != nil {
		p.recorder.Record(sub, out.winner, out.origin, out.confidence)
	}
	p.journalRound(sub)

	submitErr := p.sink.SubmitResult(ctx, sub)
	if err := p.sink.EndSignal(ctx, shoe, round); err != nil {
		p.log.Warn("end signal failed", "shoe", shoe, "round", round, "err", err)
	}
	if submitErr != nil {
		return sub, errs.Wrap(submitErr, "pipeline: submit result")
	}

	p.log.Info("round submitted",
		"shoe", shoe, "round", round,
		"result", sub.Result, "origin", sub.Origin,
		"dragon", sub.DragonCard, "tiger", sub.TigerCard)
	return sub, nil
}

// resolveWithFallback 依層級決定本局結果：
// 辨識 → 降級（上游最新結果碼 + 固定牌面） → 預設（龍勝、未知牌面）。
func (p *Pipeline) resolveWithFallback(ctx context.Context, shoe, round int, geometry []signal.CardRect) roundOutcome {
	if out, err := p.resolveRecognized(ctx, geometry); err == nil {
		return out
	} else if !errs.IsFatal(err) {
		p.log.Warn("recognition insufficient, degrading",
			"shoe", shoe, "round", round, "err", err)
	} else {
		p.log.Error("recognition failed hard, degrading",
			"shoe", shoe, "round", round, "err", err)
	}

	if out, err := p.resolveDegraded(ctx); err == nil {
		return out
	} else {
		p.log.Warn("degraded fallback unavailable, defaulting",
			"shoe", shoe, "round", round, "err", err)
	}

	// 最後防線：固定龍勝、未知牌面。寧可回報可疑結果讓對帳修正，
	// 也不可讓後端缺局。
	return roundOutcome{
		winner: codec.Dragon,
		dragon: card.Unknown(),
		tiger:  card.Unknown(),
		origin: recorder.OriginDefault,
	}
}

// resolveRecognized 擷取畫面並辨識兩張牌面。
// 第一輪用 DOM 幾何裁切、嚴格門檻；失敗側改用比例估算裁切、
// 寬鬆門檻重試一次。
func (p *Pipeline) resolveRecognized(ctx context.Context, geometry []signal.CardRect) (roundOutcome, error) {
	frame, err := p.frames.Frame(ctx)
	if err != nil {
		return roundOutcome{}, err
	}

	dragonImg, tigerImg, err := p.crop.Crop(frame, geometry)
	if err != nil {
		return roundOutcome{}, err
	}

	dragonFace, dragonConf, dragonOK := p.predictFace(ctx, dragonImg, p.cfg.CropThreshold)
	tigerFace, tigerConf, tigerOK := p.predictFace(ctx, tigerImg, p.cfg.CropThreshold)

	if !dragonOK || !tigerOK {
		// 比例估算重試：DOM 幾何可能對不準，整組換成估算區域。
		reDragon, reTiger, cropErr := p.crop.Crop(frame, nil)
		if cropErr == nil {
			if !dragonOK {
				dragonFace, dragonConf, dragonOK = p.predictFace(ctx, reDragon, p.cfg.FrameThreshold)
			}
			if !tigerOK {
				tigerFace, tigerConf, tigerOK = p.predictFace(ctx, reTiger, p.cfg.FrameThreshold)
			}
		}
	}

	winner, err := card.Resolve(dragonFace, tigerFace)
	if err != nil {
		p.archiveFrame(frame)
		return roundOutcome{}, err
	}
	return roundOutcome{
		winner:     winner,
		dragon:     dragonFace,
		tiger:      tigerFace,
		origin:     recorder.OriginRecognized,
		confidence: (dragonConf + tigerConf) / 2,
	}, nil
}

func (p *Pipeline) predictFace(ctx context.Context, img []byte, threshold float64) (card.CardFace, float64, bool) {
	pred, err := p.rec.Predict(ctx, img)
	if err != nil {
		p.log.Warn("predict failed", "err", err)
		return card.Unknown(), 0, false
	}
	face, ok := pred.Face(threshold)
	return face, pred.Confidence, ok
}

// resolveDegraded 以上游最新結果碼合成結果與固定牌面。
func (p *Pipeline) resolveDegraded(ctx context.Context) (roundOutcome, error) {
	batch, err := p.upstream.FetchBatch(ctx)
	if err != nil {
		return roundOutcome{}, err
	}
	if batch.Count() == 0 {
		return roundOutcome{}, errs.NewWarn("pipeline: upstream batch empty")
	}

	latest := batch.Outcomes[batch.Count()-1]
	winner := p.table.ToCanonical(latest).Winner
	if winner == codec.Unknown {
		return roundOutcome{}, errs.NewWithExtra(errs.Warn, "pipeline: unmapped outcome code", latest)
	}

	dragon, tiger := card.CannedPair(winner)
	return roundOutcome{
		winner: winner,
		dragon: dragon,
		tiger:  tiger,
		origin: recorder.OriginDegraded,
	}, nil
}

// archiveFrame 保留辨識失敗的整幀畫面。存檔失敗只記錄。
func (p *Pipeline) archiveFrame(frame []byte) {
	if p.archive == nil || len(frame) == 0 {
		return
	}
	if err := p.archive.Save(frame); err != nil {
		p.log.Warn("archive frame failed", "err", err)
	}
}

func (p *Pipeline) journalRound(sub backend.ResultSubmission) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Append(journal.CategoryRoadmap, "round_result", sub); err != nil {
		p.log.Warn("journal round result failed", "err", err)
	}
}
