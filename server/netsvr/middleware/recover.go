package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover 攔截 handler panic：記錄堆疊後回 500，不拖垮監看進程。
// http.ErrAbortHandler 依慣例原樣重拋，交由 net/http 收尾。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if log != nil {
					log.Error("handler panic",
						slog.String("req_id", GetReqId(r)),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
