package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	// 204 No Content, 304 Not Modified, 1xx Informational
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// CompressConfig
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
}

// --- Pools ---
var (
	gzipPool sync.Pool
	zstdPool sync.Pool
)

func getZstdWriter(w io.Writer) *zstd.Encoder {
	if v := zstdPool.Get(); v != nil {
		zw := v.(*zstd.Encoder)
		zw.Reset(w)
		return zw
	}
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(DefaultCompressConfig.ZstdLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic(err)
	}
	return zw
}

func getGzipWriter(w io.Writer) *gzip.Writer {
	if v := gzipPool.Get(); v != nil {
		gw := v.(*gzip.Writer)
		gw.Reset(w)
		return gw
	}
	gw, _ := gzip.NewWriterLevel(w, DefaultCompressConfig.GzipLevel)
	return gw
}

// resettableEncoder 是 gzip.Writer / zstd.Encoder 的共同操作面。
type resettableEncoder interface {
	io.Writer
	Reset(io.Writer)
	Close() error
}

// --- ResponseWriter Wrapper ---

type compressResponseWriter struct {
	http.ResponseWriter
	enc      resettableEncoder
	disabled bool // 標記是否動態取消壓縮 (204/304/1xx)
}

func (cw *compressResponseWriter) Write(b []byte) (int, error) {
	// 已停用壓縮：直接寫入底層
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}

	// 防禦隱式 Header 發送
	cw.Header().Del("Content-Length")

	// 嗅探 Content-Type
	if cw.Header().Get("Content-Type") == "" {
		cw.Header().Set("Content-Type", http.DetectContentType(b))
	}

	return cw.enc.Write(b)
}

func (cw *compressResponseWriter) WriteHeader(code int) {
	cw.Header().Del("Content-Length")

	// 動態偵測是否應該取消壓縮 (204/304/1xx)
	if isNoBodyStatus(code) {
		cw.disabled = true
		cw.Header().Del("Content-Encoding")
		cw.Header().Del("Vary")
	}

	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressResponseWriter) Flush() {
	// 只有在啟用壓縮時，才 Flush 壓縮器
	if !cw.disabled {
		if f, ok := cw.enc.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	// 永遠 Flush 底層
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

// --- Middleware 入口 ---

// Compression 依 Accept-Encoding 對回應做 zstd 或 gzip 壓縮。
// 204/304/1xx 回應會動態取消壓縮，壓縮器結束時的 footer 會被丟到
// io.Discard，不會污染無 body 的回應。
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// [Guard 1] WebSocket / Head
		if r.Method == http.MethodHead || isWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		// [Guard 2] 避免二次壓縮
		if w.Header().Get("Content-Encoding") != "" {
			next.ServeHTTP(w, r)
			return
		}

		accept := r.Header.Get("Accept-Encoding")

		var (
			enc     resettableEncoder
			release func()
		)
		switch {
		case strings.Contains(accept, "zstd"):
			zw := getZstdWriter(w)
			enc = zw
			release = func() { zstdPool.Put(zw) }
			w.Header().Set("Content-Encoding", "zstd")
		case strings.Contains(accept, "gzip"):
			gw := getGzipWriter(w)
			enc = gw
			release = func() { gzipPool.Put(gw) }
			w.Header().Set("Content-Encoding", "gzip")
		default:
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")

		cw := &compressResponseWriter{ResponseWriter: w, enc: enc}
		defer func() {
			if cw.disabled {
				// footer 丟棄，避免寫入 204/304 回應
				enc.Reset(io.Discard)
			}
			_ = enc.Close()
			release()
		}()

		next.ServeHTTP(cw, r)
	})
}
