package index

import (
	"net/http"
)

const indexBody = `tablewatch
===========

  GET  /healthz          存活檢查
  GET  /v1/status        追蹤狀態與輪詢統計
  GET  /v1/report        本靴統計報表 (?format=json|yaml|table)
  POST /v1/sync          立即觸發一次後端對帳
`

// IndexHandlerFn 回傳簡短的服務說明頁。
func IndexHandlerFn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(indexBody))
}

// HealthHandlerFn 是存活檢查端點，永遠回 200。
func HealthHandlerFn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
