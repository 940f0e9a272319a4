package spec

import (
	"testing"

	"github.com/zintix-labs/tablewatch/sdk/codec"
)

const minimalYAML = `
desk_id: "D7"
backend:
  base_url: "http://127.0.0.1:9000"
upstream:
  urls: ["http://upstream-a/results", "http://upstream-b/results"]
`

func TestGetWatchSettingByYAMLFillsDefaults(t *testing.T) {
	ws, err := GetWatchSettingByYAML([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ws.DeskID != "D7" {
		t.Fatalf("desk id: %q", ws.DeskID)
	}
	if ws.Poll.DomIntervalMS != 300 || ws.Poll.MaxDomFailures != 5 {
		t.Fatalf("poll defaults not filled: %+v", ws.Poll)
	}
	if ws.Track.ShoeDropThreshold != 10 || ws.Track.ShoeDropCurMax != 5 {
		t.Fatalf("track defaults not filled: %+v", ws.Track)
	}
	if ws.Reconcile.IncrementalFloor != 2 || ws.Reconcile.ShoeAdvanceCeiling != -10 {
		t.Fatalf("reconcile defaults not filled: %+v", ws.Reconcile)
	}
	if ws.Recognize.CropThreshold != 0.2 || ws.Recognize.FrameThreshold != 0.5 {
		t.Fatalf("recognize defaults not filled: %+v", ws.Recognize)
	}
	if ws.Journal.Dir != "journal" || ws.Journal.RetentionDays != 14 {
		t.Fatalf("journal defaults not filled: %+v", ws.Journal)
	}
}

func TestGetWatchSettingRejectsEmptyDeskID(t *testing.T) {
	if _, err := GetWatchSettingByYAML([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty desk_id")
	}
}

func TestGetWatchSettingRejectsBadThresholdOrder(t *testing.T) {
	bad := minimalYAML + `
recognize:
  crop_threshold: 0.9
  frame_threshold: 0.5
`
	if _, err := GetWatchSettingByYAML([]byte(bad)); err == nil {
		t.Fatalf("expected error when crop threshold exceeds frame threshold")
	}
}

func TestGetWatchSettingByJSON(t *testing.T) {
	data := []byte(`{"desk_id":"D1","reconcile":{"incremental_floor":3}}`)
	ws, err := GetWatchSettingByJSON(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ws.Reconcile.IncrementalFloor != 3 {
		t.Fatalf("explicit value overridden: %+v", ws.Reconcile)
	}
	if ws.Reconcile.FullResyncFloor != -9 {
		t.Fatalf("sibling default missing: %+v", ws.Reconcile)
	}
}

func TestCodecTable(t *testing.T) {
	ws, err := GetWatchSettingByYAML([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// 未設定 result_convert 時使用內建表。
	table := ws.CodecTable()
	if got := table.ToCanonical("10").Winner; got != codec.Dragon {
		t.Fatalf("default table: %v", got)
	}

	ws.ResultConvert = map[string]string{"x": "tie"}
	if got := ws.CodecTable().ToCanonical("x").Winner; got != codec.Tie {
		t.Fatalf("custom table: %v", got)
	}
}

func TestInvalidResultConvertTarget(t *testing.T) {
	bad := minimalYAML + `
result_convert:
  "10": "banker"
`
	if _, err := GetWatchSettingByYAML([]byte(bad)); err == nil {
		t.Fatalf("expected error for unknown result_convert target")
	}
}
