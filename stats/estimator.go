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
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ProportionCICP 以 Clopper–Pearson 精確法估計二項比例（k/n）的信賴區間。
func ProportionCICP(k, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// MeanCI 以常態近似估計平均值的信賴區間。
// sum / sqSum 為樣本和與平方和；n < 2 時回傳退化區間。
func MeanCI(sum, sqSum float64, n int, confidence float64) (mean, std float64, ci CI) {
	if n == 0 {
		return 0, 0, CI{}
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0, CI{Lo: mean, Hi: mean}
	}

	variance := (sqSum - float64(n)*mean*mean) / float64(n-1)
	if variance < 0 {
		variance = 0 // 浮點誤差
	}
	std = math.Sqrt(variance)

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	z := normal.Quantile(1 - (1-confidence)/2)
	half := z * std / math.Sqrt(float64(n))
	return mean, std, CI{Lo: mean - half, Hi: mean + half}
}
