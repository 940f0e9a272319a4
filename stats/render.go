package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// ShoeReportRender 定義輸出行為
type ShoeReportRender interface {
	Write(w io.Writer, r *ShoeReport) error
}

// Json渲染
type JsonShoeReportRender struct{}

func (jr *JsonShoeReportRender) Write(w io.Writer, r *ShoeReport) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLShoeReportRender struct{}

func (yr *YAMLShoeReportRender) Write(w io.Writer, r *ShoeReport) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(r)
}

// TableShoeReportRender 以對齊表格輸出（標籤含 CJK，寬度用
// runewidth 計；數字用 message.Printer 做千分位）。
type TableShoeReportRender struct{}

func (tr *TableShoeReportRender) Write(w io.Writer, r *ShoeReport) error {
	p := message.NewPrinter(language.English)

	rows := [][2]string{
		{"桌台", r.Summary.DeskID},
		{"靴號", p.Sprintf("%d", r.Summary.Shoe)},
		{"總局數", p.Sprintf("%d", r.Summary.Rounds)},
		{"龍勝", fmtCountRate(p, r.Outcome.DragonWins, r.Outcome.DragonRate)},
		{"虎勝", fmtCountRate(p, r.Outcome.TigerWins, r.Outcome.TigerRate)},
		{"和局", fmtCountRate(p, r.Outcome.Ties, r.Outcome.TieRate)},
		{"辨識成功", p.Sprintf("%d", r.Origin.Recognized)},
		{"降級回報", p.Sprintf("%d", r.Origin.Degraded)},
		{"預設回報", p.Sprintf("%d", r.Origin.Defaulted)},
	}
	if r.Confidence.Samples > 0 {
		rows = append(rows, [2]string{
			"辨識信心",
			fmt.Sprintf("%.3f ± %.3f [%.3f, %.3f]",
				r.Confidence.Mean, r.Confidence.Std,
				r.Confidence.MeanCI.Lo, r.Confidence.MeanCI.Hi),
		})
	}

	maxW := 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > maxW {
			maxW = w
		}
	}
	var b strings.Builder
	for _, row := range rows {
		pad := maxW - runewidth.StringWidth(row[0])
		fmt.Fprintf(&b, "  %s%s : %s\n", row[0], strings.Repeat(" ", pad), row[1])
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func fmtCountRate(p *message.Printer, count int, rate PointStat) string {
	return fmt.Sprintf("%s (%.1f%% [%.1f%%, %.1f%%])",
		p.Sprintf("%d", count), rate.Hat*100, rate.CI.Lo*100, rate.CI.Hi*100)
}
