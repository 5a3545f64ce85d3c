package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. WriteTimeout stays unset: the link endpoint
// holds its response open for the full bounded wait, and a write deadline
// would cut confirmed handshakes off mid-reply.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
