package webhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Server is the side HTTP server: Telegram updates in webhook mode,
// health and metrics
type Server struct {
	updates http.Handler
	secret  string
	metrics http.Handler
	log     *slog.Logger

	server *http.Server
}

// NewServer creates a new side server. updates may be nil in polling mode.
// When secret is set, updates must carry it in the
// X-Telegram-Bot-Api-Secret-Token header.
func NewServer(updates http.Handler, secret string, metrics http.Handler, log *slog.Logger) *Server {
	return &Server{
		updates: updates,
		secret:  secret,
		metrics: metrics,
		log:     log,
	}
}

// Handler returns the routing of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.updates != nil {
		mux.HandleFunc("/webhook", s.handleWebhook)
		mux.HandleFunc("/webhook/", s.handleWebhook)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleHealth)
	return mux
}

// Start starts the side server
func (s *Server) Start(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting http server", "port", port, "webhook", s.updates != nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	return s.server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.secret != "" {
		token := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			s.log.Warn("webhook rejected: bad secret token", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	s.log.Debug("webhook received", "content_length", r.ContentLength)
	s.updates.ServeHTTP(w, r)
}
