package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"example.com/openchat/internal/chat"
	"example.com/openchat/internal/logger"
	"example.com/openchat/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP boundary.
type Options struct {
	Addr      string
	CertFile  string // TLS is used only when both files are set
	KeyFile   string
	JWTSecret string
	TokenTTL  time.Duration
}

type Server struct {
	registry *chat.Registry
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time // stamps publications
	tokenNow func() time.Time // issues tokens, checked against the wall clock
	validate *validator.Validate
}

var logg = logger.New()

func newServer(reg *chat.Registry, secret string, ttl time.Duration) *Server {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		registry: reg,
		secret:   []byte(secret),
		tokenTTL: ttl,
		now:      time.Now,
		tokenNow: time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Server) routes() http.Handler {
	auth := middleware.JWTAuth(s.secret)

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("POST /users", s.registerHandler)
	mux.HandleFunc("POST /login", s.loginHandler)
	mux.HandleFunc("GET /users/{userID}/timeline", s.timelineHandler)
	mux.HandleFunc("GET /users/{userID}/wall", s.wallHandler)
	mux.HandleFunc("GET /followings/{followerID}/followees", s.followeesHandler)

	// Protected endpoints, the token subject must be the acting account
	mux.Handle("POST /users/{userID}/timeline", auth(http.HandlerFunc(s.publishHandler)))
	mux.Handle("POST /followings", auth(http.HandlerFunc(s.followHandler)))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves the registry over HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, reg *chat.Registry, opts Options) error {
	s := newServer(reg, opts.JWTSecret, opts.TokenTTL)

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if opts.CertFile != "" && opts.KeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+opts.Addr)
			err = srv.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+opts.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}
