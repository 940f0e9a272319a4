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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"

	"github.com/zintix-labs/tablewatch/backend"
	"github.com/zintix-labs/tablewatch/journal"
	"github.com/zintix-labs/tablewatch/recorder"
	"github.com/zintix-labs/tablewatch/stats"
)

// 離線回放工具：把 roadmap 日誌（desk{id}_roadmap_{YYYYMMDD}.jsonl）
// 重新餵進紀錄員，重建每靴統計報表。用於稽核回報內容與核對後端數字。
func main() {
	var (
		file   string
		format string
		showpb bool
	)
	flag.StringVar(&file, "file", "", "roadmap jsonl file to replay")
	flag.StringVar(&format, "format", "table", "output format: json|yaml|table")
	flag.BoolVar(&showpb, "pb", true, "show progress bar")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "replay: -file is required")
		os.Exit(1)
	}
	render, err := renderBy(format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	entries, err := journal.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := replay(entries, render, showpb); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replay(entries []journal.Entry, render stats.ShoeReportRender, showpb bool) error {
	bar := pb.StartNew(len(entries))
	if !showpb {
		bar.SetWriter(io.Discard)
	}

	var rcd *recorder.RoundRecorder
	rounds := 0
	for _, e := range entries {
		bar.Increment()
		if e.Type != "round_result" {
			continue
		}
		var sub backend.ResultSubmission
		if err := json.Unmarshal(e.Data, &sub); err != nil {
			continue
		}

		if rcd == nil {
			rcd = recorder.NewRoundRecorder(sub.DeskID, sub.Shoe)
		} else if sub.Shoe != rcd.Shoe() {
			// 換靴：結算並輸出上一靴
			if err := flush(rcd, render); err != nil {
				return err
			}
			rcd.Reset(sub.Shoe)
		}
		// 回放時沒有辨識信心可用，一律傳 0。
		rcd.Record(sub, backend.ResultWinner(sub.Result), sub.Origin, 0)
		rounds++
	}
	bar.Finish()

	if rcd == nil {
		fmt.Println("no round_result entries found")
		return nil
	}
	fmt.Printf("replayed %d rounds\n", rounds)
	return flush(rcd, render)
}

func flush(rcd *recorder.RoundRecorder, render stats.ShoeReportRender) error {
	report := rcd.Done()
	if report.Summary.Rounds == 0 {
		return nil
	}
	fmt.Printf("---- shoe %d ----\n", report.Summary.Shoe)
	return render.Write(os.Stdout, report)
}

func renderBy(format string) (stats.ShoeReportRender, error) {
	switch format {
	case "json":
		return &stats.JsonShoeReportRender{}, nil
	case "yaml":
		return &stats.YAMLShoeReportRender{}, nil
	case "table":
		return &stats.TableShoeReportRender{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
