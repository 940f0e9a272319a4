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

// Package stats 彙整單靴的結果分布與辨識品質統計。
package stats

// CI 是信賴區間。
type CI struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

// PointStat 點估計：估計值與信賴區間。
type PointStat struct {
	Hat float64 `yaml:"hat" json:"hat"`
	CI  CI      `yaml:"ci"  json:"ci"`
}

// ShoeReport 是一靴結束（或進行中）時的統計報表。
type ShoeReport struct {
	Summary    *SummaryReport    `yaml:"summary"    json:"summary"`
	Outcome    *OutcomeReport    `yaml:"outcome"    json:"outcome"`
	Origin     *OriginReport     `yaml:"origin"     json:"origin"`
	Confidence *ConfidenceReport `yaml:"confidence" json:"confidence"`
}

// SummaryReport 是基本資訊。
type SummaryReport struct {
	DeskID string `yaml:"desk_id" json:"desk_id"`
	Shoe   int    `yaml:"shoe"    json:"shoe"`
	Rounds int    `yaml:"rounds"  json:"rounds"`
}

// OutcomeReport 是結果分布：各勝方的局數、比例與 95% CI。
type OutcomeReport struct {
	DragonWins int       `yaml:"dragon_wins" json:"dragon_wins"`
	TigerWins  int       `yaml:"tiger_wins"  json:"tiger_wins"`
	Ties       int       `yaml:"ties"        json:"ties"`
	DragonRate PointStat `yaml:"dragon_rate" json:"dragon_rate"`
	TigerRate  PointStat `yaml:"tiger_rate"  json:"tiger_rate"`
	TieRate    PointStat `yaml:"tie_rate"    json:"tie_rate"`
}

// OriginReport 是結果來源層級分布（辨識 / 降級 / 預設）。
type OriginReport struct {
	Recognized  int       `yaml:"recognized"   json:"recognized"`
	Degraded    int       `yaml:"degraded"     json:"degraded"`
	Defaulted   int       `yaml:"defaulted"    json:"defaulted"`
	DegradeRate PointStat `yaml:"degrade_rate" json:"degrade_rate"`
}

// ConfidenceReport 是辨識信心的平均、標準差與平均值的 95% CI。
// 只計入有辨識結果的局。
type ConfidenceReport struct {
	Samples int     `yaml:"samples" json:"samples"`
	Mean    float64 `yaml:"mean"    json:"mean"`
	Std     float64 `yaml:"std"     json:"std"`
	MeanCI  CI      `yaml:"mean_ci" json:"mean_ci"`
}
