package http

import (
	"net/http"

	"github.com/rtm-python/est/internal/app"
	"go.uber.org/zap"
)

// NewRouter wires every endpoint. metrics may be nil.
func NewRouter(service *app.TestingService, log *zap.Logger, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", NewWSHandler(service, log).ServeWS)
	NewAPIHandler(service, log).Register(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
