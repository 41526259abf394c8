package middleware

import (
	"mime"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RequireJSON rejects bodies that are not application/json and caps their size.
func RequireJSON(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			sugar.Debugw("wrong content type", "content_type", r.Header.Get("Content-Type"))
			http.Error(w, "wrong content type", http.StatusUnsupportedMediaType)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		h.ServeHTTP(w, r)
	})
}
