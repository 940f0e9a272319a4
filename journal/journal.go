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

// Package journal 提供按日分檔的 JSON-lines 事件日誌。
//
// 檔名格式 desk{id}_{category}_{YYYYMMDD}.jsonl，每行一筆事件。
// 寫入走 append-only，離線稽核與回放（cmd/replay）直接讀檔即可。
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zintix-labs/tablewatch/errs"
)

// 常用事件分類。Append 不限定分類名稱，這裡只列慣用值。
const (
	CategoryRoadmap = "roadmap"
	CategorySync    = "sync"
	CategoryMonitor = "monitor"
)

// Entry 是日誌中的一筆事件。
type Entry struct {
	At   time.Time       `json:"at"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Journal 是單一桌台的事件日誌。併發安全；檔案以追加模式逐筆寫入。
type Journal struct {
	dir       string
	deskID    string
	retention time.Duration
	log       *slog.Logger

	mu   sync.Mutex
	now  func() time.Time
	open map[string]*os.File // category → 當日檔案
	day  map[string]string   // category → 檔案所屬日期（YYYYMMDD）
}

// New 建立日誌。目錄不存在時建立；retentionDays <= 0 表示不清檔。
func New(dir, deskID string, retentionDays int, log *slog.Logger) (*Journal, error) {
	if deskID == "" {
		return nil, errs.NewFatal("journal: empty desk id")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "journal: create dir")
	}
	return &Journal{
		dir:       dir,
		deskID:    deskID,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
		now:       time.Now,
		open:      make(map[string]*os.File),
		day:       make(map[string]string),
	}, nil
}

func (j *Journal) fileName(category, day string) string {
	return fmt.Sprintf("desk%s_%s_%s.jsonl", j.deskID, category, day)
}

// Append 追加一筆事件到指定分類的當日檔案。
// data 需可 JSON 序列化；寫入失敗回傳 Warn 級錯誤（日誌非關鍵路徑）。
func (j *Journal) Append(category, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errs.NewWithExtra(errs.Warn, "journal: marshal event data", err.Error())
	}
	entry := Entry{At: j.now(), Type: eventType, Data: raw}
	line, err := json.Marshal(entry)
	if err != nil {
		return errs.NewWithExtra(errs.Warn, "journal: marshal entry", err.Error())
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.fileForLocked(category)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errs.NewWithExtra(errs.Warn, "journal: append", err.Error())
	}
	return nil
}

// fileForLocked 回傳分類的當日檔案，跨日時滾動到新檔。
func (j *Journal) fileForLocked(category string) (*os.File, error) {
	day := j.now().Format("20060102")
	if f, ok := j.open[category]; ok && j.day[category] == day {
		return f, nil
	}
	if f, ok := j.open[category]; ok {
		_ = f.Close()
		delete(j.open, category)
	}
	path := filepath.Join(j.dir, j.fileName(category, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.NewWithExtra(errs.Warn, "journal: open file", err.Error())
	}
	j.open[category] = f
	j.day[category] = day
	return f, nil
}

// Recent 讀取指定分類自 since 起的事件，最多 limit 筆（limit <= 0 不限）。
// 只掃描 since 當日起的分檔；壞行跳過不報錯。
func (j *Journal) Recent(category string, since time.Time, limit int) ([]Entry, error) {
	j.mu.Lock()
	now := j.now()
	j.mu.Unlock()

	var out []Entry
	start := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())
	for day := start; !day.After(now); day = day.AddDate(0, 0, 1) {
		path := filepath.Join(j.dir, j.fileName(category, day.Format("20060102")))
		entries, err := ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.At.Before(since) {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ReadFile 讀取單一 jsonl 檔案的全部事件。壞行跳過。
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, errs.NewWithExtra(errs.Warn, "journal: scan file", err.Error())
	}
	return out, nil
}

// Prune 刪除超過保留期限的分檔，回傳刪除數。retention 未設定時為 no-op。
func (j *Journal) Prune() (int, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	j.mu.Lock()
	cutoff := j.now().Add(-j.retention)
	j.mu.Unlock()

	names, err := filepath.Glob(filepath.Join(j.dir, "desk"+j.deskID+"_*.jsonl"))
	if err != nil {
		return 0, errs.NewWithExtra(errs.Warn, "journal: glob", err.Error())
	}

	removed := 0
	for _, path := range names {
		day, ok := fileDay(filepath.Base(path))
		if !ok {
			continue
		}
		t, err := time.ParseInLocation("20060102", day, time.Local)
		if err != nil {
			continue
		}
		// 以檔案日的翌日零時為界，整日過期才刪。
		if t.Add(24 * time.Hour).After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.log.Warn("journal prune remove failed", "path", path, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// fileDay 從檔名 desk{id}_{category}_{YYYYMMDD}.jsonl 取出日期段。
func fileDay(name string) (string, bool) {
	name = strings.TrimSuffix(name, ".jsonl")
	idx := strings.LastIndexByte(name, '_')
	if idx < 0 || idx+1 >= len(name) {
		return "", false
	}
	day := name[idx+1:]
	if len(day) != 8 {
		return "", false
	}
	return day, true
}

// Close 關閉所有已開啟的分檔。
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for c, f := range j.open {
		_ = f.Close()
		delete(j.open, c)
	}
	return nil
}
