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
	"bytes"
	"image"
	"image/draw"
	"image/png"

	"github.com/zintix-labs/tablewatch/errs"
	"github.com/zintix-labs/tablewatch/sdk/signal"
)

// RelRegion 是以畫面比例表示的矩形（0..1）。
type RelRegion struct {
	X, Y, W, H float64
}

func (r RelRegion) rect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.X*w),
		bounds.Min.Y+int(r.Y*h),
		bounds.Min.X+int((r.X+r.W)*w),
		bounds.Min.Y+int((r.Y+r.H)*h),
	)
}

// CaptureAdapter 從整幀 PNG 裁出龍、虎兩張牌面影像。
//
// 優先使用 DOM 回報的牌面區域（頁面座標即畫面座標，bridge 以 1:1
// 縮放擷取）；DOM 幾何缺漏或不合法時退回比例估算區域。
type CaptureAdapter struct {
	DragonRegion RelRegion
	TigerRegion  RelRegion
}

// NewCaptureAdapter 回傳帶預設比例區域的裁切器。
// 預設值對應常見桌台版面：牌面在畫面中帶下緣、龍左虎右。
func NewCaptureAdapter() *CaptureAdapter {
	return &CaptureAdapter{
		DragonRegion: RelRegion{X: 0.30, Y: 0.55, W: 0.14, H: 0.24},
		TigerRegion:  RelRegion{X: 0.56, Y: 0.55, W: 0.14, H: 0.24},
	}
}

// Crop 裁出（龍側, 虎側）兩張 PNG。
// geometry 依序為龍、虎區域；兩格都合法才採用，否則整組退回比例估算。
func (a *CaptureAdapter) Crop(frame []byte, geometry []signal.CardRect) (dragon, tiger []byte, err error) {
	img, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, nil, errs.NewWithExtra(errs.Warn, "browser: decode frame png", err.Error())
	}
	bounds := img.Bounds()

	dragonRect, tigerRect := a.DragonRegion.rect(bounds), a.TigerRegion.rect(bounds)
	if len(geometry) >= 2 && geometry[0].Valid() && geometry[1].Valid() {
		dragonRect = image.Rect(geometry[0].X, geometry[0].Y,
			geometry[0].X+geometry[0].W, geometry[0].Y+geometry[0].H)
		tigerRect = image.Rect(geometry[1].X, geometry[1].Y,
			geometry[1].X+geometry[1].W, geometry[1].Y+geometry[1].H)
	}

	dragon, err = cropPNG(img, dragonRect)
	if err != nil {
		return nil, nil, err
	}
	tiger, err = cropPNG(img, tigerRect)
	if err != nil {
		return nil, nil, err
	}
	return dragon, tiger, nil
}

// cropPNG 複製交集區域成新影像再編碼，避免留住整幀的底層陣列。
func cropPNG(src image.Image, r image.Rectangle) ([]byte, error) {
	r = r.Intersect(src.Bounds())
	if r.Empty() {
		return nil, errs.Warnf("browser: crop region outside frame: %v", r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errs.Wrap(err, "browser: encode crop")
	}
	return buf.Bytes(), nil
}
