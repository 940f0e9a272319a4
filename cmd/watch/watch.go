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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zintix-labs/tablewatch"
	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/browser"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/recognizer"
	"github.com/zintix-labs/tablewatch/server"
	"github.com/zintix-labs/tablewatch/server/logger"
	"github.com/zintix-labs/tablewatch/server/netsvr"
	"github.com/zintix-labs/tablewatch/server/svrcfg"
	"github.com/zintix-labs/tablewatch/spec"
	"github.com/zintix-labs/tablewatch/upstream"
)

// 單一桌台監看實例的入口：載入設定、組裝協作者、
// 同時啟動輪詢 watcher 與狀態 API server。
func main() {
	sCfg, addr, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	server.RunWithSvr(sCfg, netsvr.NewChiServer(addr))
}

type config struct {
	ConfigPath  string
	LogMode     string
	Addr        string
	ArchivePath string
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, string, error) {
	cfg := new(config)
	flag.StringVar(&cfg.ConfigPath, "config", "watch.yaml", "path to desk watch config (yaml)")
	flag.StringVar(&cfg.LogMode, "log-mode", "ModeDev", "log mode: ModeDev|ModeProd|ModeSilence")
	flag.StringVar(&cfg.Addr, "addr", ":5811", "status api listen address")
	flag.StringVar(&cfg.ArchivePath, "archive", "", "optional path to save frames that failed recognition")

	flag.Parse()

	log, _ := logger.NewAsync(4096, cfg.norm())

	raw, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	ws, err := spec.GetWatchSettingByYAML(raw)
	if err != nil {
		return nil, "", err
	}

	jnl, err := journal.New(ws.Journal.Dir, ws.DeskID, ws.Journal.RetentionDays, log)
	if err != nil {
		return nil, "", err
	}
	bridge, err := browser.NewHTTPBridge(ws.Bridge.BaseURL, ws.Bridge.Timeout())
	if err != nil {
		return nil, "", err
	}
	rec, err := recognizer.NewHTTP(ws.Recognize)
	if err != nil {
		return nil, "", err
	}
	be, err := backend.New(ws.Backend, ws.DeskID, log)
	if err != nil {
		return nil, "", err
	}
	up, err := upstream.New(ws.Upstream, log)
	if err != nil {
		return nil, "", err
	}

	tw, err := tablewatch.New(ws, bridge, bridge, rec, be, up, jnl, log)
	if err != nil {
		return nil, "", err
	}
	if cfg.ArchivePath != "" {
		archive, err := browser.OpenFrameArchive(cfg.ArchivePath)
		if err != nil {
			return nil, "", err
		}
		tw.AttachArchive(archive)
	}

	sCfg := &svrcfg.SvrCfg{
		Log:     log,
		Watcher: tw.BuildWatcher(),
	}
	return sCfg, cfg.Addr, nil
}

func (cfg *config) norm() logger.LogMode {
	switch cfg.LogMode {
	case "ModeDev":
		return logger.ModeDev
	case "ModeProd":
		return logger.ModeProd
	case "ModeSilence":
		return logger.ModeSilence
	default:
		return logger.ModeDev
	}
}
