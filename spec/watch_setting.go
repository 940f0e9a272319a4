package spec

import (
	"fmt"
	"time"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/codec"
)

// WatchSetting 包含啟動一個桌台監看實例所需的所有高階設定。
// 所有啟發式門檻（對帳帶、換靴落差、信心門檻、輪詢間隔、保留天數）
// 皆為欄位而非常數，缺項時由 init 補上預設值。
type WatchSetting struct {
	DeskID        string            `yaml:"desk_id"          json:"desk_id"`
	Poll          PollSetting       `yaml:"poll"             json:"poll"`
	Track         TrackSetting      `yaml:"track"            json:"track"`
	Reconcile     ReconcileSetting  `yaml:"reconcile"        json:"reconcile"`
	Recognize     RecognizeSetting  `yaml:"recognize"        json:"recognize"`
	Bridge        BridgeSetting     `yaml:"bridge"           json:"bridge"`
	Backend       BackendSetting    `yaml:"backend"          json:"backend"`
	Upstream      UpstreamSetting   `yaml:"upstream"         json:"upstream"`
	Journal       JournalSetting    `yaml:"journal"          json:"journal"`
	ResultConvert map[string]string `yaml:"result_convert"   json:"result_convert"`
}

// PollSetting 控制輪詢迴圈的節奏與退避行為。
type PollSetting struct {
	DomIntervalMS      int `yaml:"dom_interval_ms"       json:"dom_interval_ms"`
	UpstreamIntervalMS int `yaml:"upstream_interval_ms"  json:"upstream_interval_ms"`
	SyncCheckIntervalS int `yaml:"sync_check_interval_s" json:"sync_check_interval_s"`
	HeartbeatS         int `yaml:"heartbeat_s"           json:"heartbeat_s"`
	MaxDomFailures     int `yaml:"max_dom_failures"      json:"max_dom_failures"`
	BackoffBaseMS      int `yaml:"backoff_base_ms"       json:"backoff_base_ms"`
	BackoffMaxMS       int `yaml:"backoff_max_ms"        json:"backoff_max_ms"`
}

func (p PollSetting) DomInterval() time.Duration      { return time.Duration(p.DomIntervalMS) * time.Millisecond }
func (p PollSetting) UpstreamInterval() time.Duration { return time.Duration(p.UpstreamIntervalMS) * time.Millisecond }
func (p PollSetting) SyncCheckInterval() time.Duration {
	return time.Duration(p.SyncCheckIntervalS) * time.Second
}
func (p PollSetting) Heartbeat() time.Duration   { return time.Duration(p.HeartbeatS) * time.Second }
func (p PollSetting) BackoffBase() time.Duration { return time.Duration(p.BackoffBaseMS) * time.Millisecond }
func (p PollSetting) BackoffMax() time.Duration  { return time.Duration(p.BackoffMaxMS) * time.Millisecond }

// TrackSetting 控制換靴偵測啟發式。
// 批次筆數從 0 以上掉回 0 一律視為換靴；此外當前值 > PrevMin、
// 新值 < CurMax 且落差超過 DropThreshold 也視為換靴。
type TrackSetting struct {
	ShoeDropThreshold int `yaml:"shoe_drop_threshold" json:"shoe_drop_threshold"`
	ShoeDropPrevMin   int `yaml:"shoe_drop_prev_min"  json:"shoe_drop_prev_min"`
	ShoeDropCurMax    int `yaml:"shoe_drop_cur_max"   json:"shoe_drop_cur_max"`
	EventBufferSize   int `yaml:"event_buffer_size"   json:"event_buffer_size"`
}

// ReconcileSetting 控制對帳決策帶（diff = 本地 - 後端）。
// diff 0 或 1 一致；>= IncrementalFloor 增量補傳；-1 視為回報延遲；
// 介於 FullResyncFloor 與 -2 之間全量重建；<= ShoeAdvanceCeiling 視為
// 後端已換靴。
type ReconcileSetting struct {
	IncrementalFloor   int `yaml:"incremental_floor"    json:"incremental_floor"`
	FullResyncFloor    int `yaml:"full_resync_floor"    json:"full_resync_floor"`
	ShoeAdvanceCeiling int `yaml:"shoe_advance_ceiling" json:"shoe_advance_ceiling"`
}

// RecognizeSetting 控制牌面辨識的信心門檻與旁路服務位置。
// CropThreshold 用於定位裁切（嚴格）；FrameThreshold 用於整幀重試（寬鬆）。
type RecognizeSetting struct {
	Endpoint       string  `yaml:"endpoint"        json:"endpoint"`
	TimeoutMS      int     `yaml:"timeout_ms"      json:"timeout_ms"`
	CropThreshold  float64 `yaml:"crop_threshold"  json:"crop_threshold"`
	FrameThreshold float64 `yaml:"frame_threshold" json:"frame_threshold"`
}

func (r RecognizeSetting) Timeout() time.Duration { return time.Duration(r.TimeoutMS) * time.Millisecond }

// BridgeSetting 是瀏覽器橋接服務（DOM 快照 / 畫面擷取）的連線設定。
type BridgeSetting struct {
	BaseURL   string `yaml:"base_url"   json:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms" json:"timeout_ms"`
}

func (b BridgeSetting) Timeout() time.Duration { return time.Duration(b.TimeoutMS) * time.Millisecond }

// BackendSetting 是回報後端的連線設定。
type BackendSetting struct {
	BaseURL   string `yaml:"base_url"   json:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms" json:"timeout_ms"`
	Retry     int    `yaml:"retry"      json:"retry"`
}

func (b BackendSetting) Timeout() time.Duration { return time.Duration(b.TimeoutMS) * time.Millisecond }

// UpstreamSetting 是上游結果端點的設定。
// URLs 依序輪替：連續失敗達 RotateAfter 次即切換下一個。
type UpstreamSetting struct {
	URLs        []string `yaml:"urls"         json:"urls"`
	SessionID   string   `yaml:"session_id"   json:"session_id"`
	Username    string   `yaml:"username"     json:"username"`
	RotateAfter int      `yaml:"rotate_after" json:"rotate_after"`
	TimeoutMS   int      `yaml:"timeout_ms"   json:"timeout_ms"`
}

func (u UpstreamSetting) Timeout() time.Duration { return time.Duration(u.TimeoutMS) * time.Millisecond }

// JournalSetting 是事件日誌的存放與保留設定。
type JournalSetting struct {
	Dir           string `yaml:"dir"            json:"dir"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// init 補預設值、建立子設定並執行基本檢查。
func (ws *WatchSetting) init() error {
	ws.fillDefaults()
	return ws.valid()
}

func (ws *WatchSetting) fillDefaults() {
	p := &ws.Poll
	if p.DomIntervalMS <= 0 {
		p.DomIntervalMS = 300
	}
	if p.UpstreamIntervalMS <= 0 {
		p.UpstreamIntervalMS = 3000
	}
	if p.SyncCheckIntervalS <= 0 {
		p.SyncCheckIntervalS = 60
	}
	if p.HeartbeatS <= 0 {
		p.HeartbeatS = 30
	}
	if p.MaxDomFailures <= 0 {
		p.MaxDomFailures = 5
	}
	if p.BackoffBaseMS <= 0 {
		p.BackoffBaseMS = 1000
	}
	if p.BackoffMaxMS <= 0 {
		p.BackoffMaxMS = 30000
	}

	tr := &ws.Track
	if tr.ShoeDropThreshold <= 0 {
		tr.ShoeDropThreshold = 10
	}
	if tr.ShoeDropPrevMin <= 0 {
		tr.ShoeDropPrevMin = 10
	}
	if tr.ShoeDropCurMax <= 0 {
		tr.ShoeDropCurMax = 5
	}
	if tr.EventBufferSize <= 0 {
		tr.EventBufferSize = 64
	}

	rc := &ws.Reconcile
	if rc.IncrementalFloor == 0 {
		rc.IncrementalFloor = 2
	}
	if rc.FullResyncFloor == 0 {
		rc.FullResyncFloor = -9
	}
	if rc.ShoeAdvanceCeiling == 0 {
		rc.ShoeAdvanceCeiling = -10
	}

	rg := &ws.Recognize
	if rg.TimeoutMS <= 0 {
		rg.TimeoutMS = 2000
	}
	if rg.CropThreshold <= 0 {
		rg.CropThreshold = 0.2
	}
	if rg.FrameThreshold <= 0 {
		rg.FrameThreshold = 0.5
	}

	if ws.Bridge.TimeoutMS <= 0 {
		ws.Bridge.TimeoutMS = 2000
	}

	if ws.Backend.TimeoutMS <= 0 {
		ws.Backend.TimeoutMS = 5000
	}
	if ws.Backend.Retry <= 0 {
		ws.Backend.Retry = 3
	}

	up := &ws.Upstream
	if up.RotateAfter <= 0 {
		up.RotateAfter = 3
	}
	if up.TimeoutMS <= 0 {
		up.TimeoutMS = 5000
	}

	j := &ws.Journal
	if j.Dir == "" {
		j.Dir = "journal"
	}
	if j.RetentionDays <= 0 {
		j.RetentionDays = 14
	}
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (ws *WatchSetting) valid() error {
	if ws.DeskID == "" {
		return errs.NewFatal("empty desk_id")
	}

	rc := ws.Reconcile
	if rc.IncrementalFloor < 2 {
		return errs.NewFatal(fmt.Sprintf("desk: %s err:incremental_floor must be >= 2, got %d", ws.DeskID, rc.IncrementalFloor))
	}
	if rc.FullResyncFloor >= -1 {
		return errs.NewFatal(fmt.Sprintf("desk: %s err:full_resync_floor must be <= -2, got %d", ws.DeskID, rc.FullResyncFloor))
	}
	if rc.ShoeAdvanceCeiling >= rc.FullResyncFloor {
		return errs.NewFatal(fmt.Sprintf("desk: %s err:shoe_advance_ceiling %d must be below full_resync_floor %d",
			ws.DeskID, rc.ShoeAdvanceCeiling, rc.FullResyncFloor))
	}

	rg := ws.Recognize
	if rg.CropThreshold > 1 || rg.FrameThreshold > 1 {
		return errs.NewFatal(fmt.Sprintf("desk: %s err:confidence thresholds must be in (0,1]", ws.DeskID))
	}
	if rg.CropThreshold > rg.FrameThreshold {
		// 定位裁切的門檻應比整幀重試嚴格（數值較低代表較易接受，
		// 原則上 crop 門檻 <= frame 門檻）。
		return errs.NewFatal(fmt.Sprintf("desk: %s err:crop_threshold %.2f exceeds frame_threshold %.2f",
			ws.DeskID, rg.CropThreshold, rg.FrameThreshold))
	}

	for _, u := range ws.ResultConvert {
		switch u {
		case "dragon", "tiger", "tie":
		default:
			return errs.NewFatal(fmt.Sprintf("desk: %s err:invalid result_convert target %q", ws.DeskID, u))
		}
	}

	return nil
}

// CodecTable 依 result_convert 建立結果碼對照表；未設定時使用內建表。
func (ws *WatchSetting) CodecTable() *codec.Table {
	if len(ws.ResultConvert) == 0 {
		return codec.DefaultTable()
	}
	mapping := make(map[string]codec.Winner, len(ws.ResultConvert))
	for code, name := range ws.ResultConvert {
		switch name {
		case "dragon":
			mapping[code] = codec.Dragon
		case "tiger":
			mapping[code] = codec.Tiger
		case "tie":
			mapping[code] = codec.Tie
		}
	}
	return codec.NewTable(mapping, nil)
}
