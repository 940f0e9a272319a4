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
	"bufio"
	"os"
	"sync"

	"github.com/zintix-labs/tablewatch/corefmt"
	"github.com/zintix-labs/tablewatch/errs"
)

// FrameArchive 將擷取到的整幀畫面以長度前綴框存檔，
// 供離線重跑辨識或除錯。單檔、追加寫入、併發安全。
type FrameArchive struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFrameArchive 開啟（必要時建立）存檔。
func OpenFrameArchive(path string) (*FrameArchive, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.Wrap(err, "browser: open frame archive")
	}
	return &FrameArchive{f: f}, nil
}

// Save 追加一幀。
func (a *FrameArchive) Save(frame []byte) error {
	if len(frame) == 0 {
		return errs.NewWarn("browser: refuse to archive empty frame")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return corefmt.WriteBlobFrame(a.f, frame)
}

// Close 關閉存檔。
func (a *FrameArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

// ReadFrames 讀回存檔中的所有幀。maxFrameBytes 限制單幀大小，0 不限。
func ReadFrames(path string, maxFrameBytes uint64) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "browser: open frame archive")
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var out [][]byte
	for {
		frame, err := corefmt.ReadBlobFrame(br, maxFrameBytes)
		if err != nil {
			break
		}
		out = append(out, frame)
	}
	return out, nil
}
