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

package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestProportionCICP(t *testing.T) {
	hat, ci := ProportionCICP(30, 60, 0.95)
	if hat != 0.5 {
		t.Fatalf("expected hat 0.5, got %f", hat)
	}
	if ci.Lo >= hat || ci.Hi <= hat {
		t.Fatalf("ci must bracket the estimate: %+v", ci)
	}
	if ci.Lo < 0 || ci.Hi > 1 {
		t.Fatalf("ci out of [0,1]: %+v", ci)
	}

	// 邊界
	if _, ci := ProportionCICP(0, 10, 0.95); ci.Lo != 0 {
		t.Fatalf("k=0 must pin lower bound at 0, got %+v", ci)
	}
	if _, ci := ProportionCICP(10, 10, 0.95); ci.Hi != 1 {
		t.Fatalf("k=n must pin upper bound at 1, got %+v", ci)
	}
	if hat, ci := ProportionCICP(1, 0, 0.95); hat != 0 || ci.Hi != 1 {
		t.Fatalf("n=0 must degrade to [0,1], got %f %+v", hat, ci)
	}
}

func TestMeanCI(t *testing.T) {
	// 樣本 0.6, 0.8, 0.7, 0.9
	vals := []float64{0.6, 0.8, 0.7, 0.9}
	var sum, sq float64
	for _, v := range vals {
		sum += v
		sq += v * v
	}
	mean, std, ci := MeanCI(sum, sq, len(vals), 0.95)
	if math.Abs(mean-0.75) > 1e-9 {
		t.Fatalf("expected mean 0.75, got %f", mean)
	}
	if std <= 0 {
		t.Fatalf("expected positive std, got %f", std)
	}
	if ci.Lo >= mean || ci.Hi <= mean {
		t.Fatalf("ci must bracket mean: %+v", ci)
	}

	mean, std, ci = MeanCI(0.9, 0.81, 1, 0.95)
	if mean != 0.9 || std != 0 || ci.Lo != 0.9 || ci.Hi != 0.9 {
		t.Fatalf("single sample must degrade: %f %f %+v", mean, std, ci)
	}
}

func testReport() *ShoeReport {
	dragonRate, _ := ProportionCICP(20, 41, 0.95)
	return &ShoeReport{
		Summary: &SummaryReport{DeskID: "7", Shoe: 3, Rounds: 41},
		Outcome: &OutcomeReport{
			DragonWins: 20, TigerWins: 17, Ties: 4,
			DragonRate: PointStat{Hat: dragonRate},
		},
		Origin:     &OriginReport{Recognized: 38, Degraded: 2, Defaulted: 1},
		Confidence: &ConfidenceReport{Samples: 38, Mean: 0.84, Std: 0.06, MeanCI: CI{Lo: 0.82, Hi: 0.86}},
	}
}

func TestJsonRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JsonShoeReportRender{}).Write(&buf, testReport()); err != nil {
		t.Fatalf("json render: %v", err)
	}
	if !strings.Contains(buf.String(), `"dragon_wins":20`) {
		t.Fatalf("unexpected json: %s", buf.String())
	}
}

func TestYAMLRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLShoeReportRender{}).Write(&buf, testReport()); err != nil {
		t.Fatalf("yaml render: %v", err)
	}
	if !strings.Contains(buf.String(), "dragon_wins: 20") {
		t.Fatalf("unexpected yaml: %s", buf.String())
	}
}

func TestTableRenderAligns(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableShoeReportRender{}).Write(&buf, testReport()); err != nil {
		t.Fatalf("table render: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 9 {
		t.Fatalf("expected at least 9 rows, got %d:\n%s", len(lines), out)
	}
	// 每行的分隔符必須落在同一顯示欄（CJK 以 runewidth 計寬）。
	col := -1
	for _, ln := range lines {
		prefix, _, ok := strings.Cut(ln, " : ")
		if !ok {
			t.Fatalf("missing separator in %q", ln)
		}
		w := runewidth.StringWidth(prefix)
		if col < 0 {
			col = w
			continue
		}
		if w != col {
			t.Fatalf("misaligned row %q in:\n%s", ln, out)
		}
	}
}
