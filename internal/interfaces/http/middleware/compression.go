package middleware

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

// Compression gzip-сжимает ответы клиентам, принимающим gzip.
// Короткие ответы (меньше gzhttp.DefaultMinSize) уходят как есть.
// WebSocket upgrade и HEAD пропускаются мимо обертки: ей нужен полный ответ.
func Compression(next http.Handler) http.Handler {
	compressed := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUpgrade(r) || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
