package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// RequestID 沿用 chi 的 request id middleware。
func RequestID(next http.Handler) http.Handler {
	return chimid.RequestID(next)
}

// GetReqId 取出當前請求的 request id；未設置時回傳空字串。
func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}
