// Package app wires the Ripple server runtime: config, logging, HTTP routes,
// and the realtime messaging core.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ripple/internal/chat"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the Ripple server runtime: it owns HTTP server wiring and the
// messaging core dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws   *chat.WSGateway
	rest *chat.HTTPHandler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	st, dbPool, dbEnabled, msgStore, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	mailbox, mbCloser, err := newMailbox(context.Background(), cfg, log)
	if err != nil {
		st.Close(context.Background()) //nolint:errcheck
		return nil, err
	}

	auth, err := newAuthenticator(cfg, log)
	if err != nil {
		st.Close(context.Background()) //nolint:errcheck
		return nil, err
	}

	presence := chat.NewPresence(log)
	hub := chat.NewHub(log)
	fanout := chat.NewFanout(log, presence)
	router := chat.NewRouter(log, msgStore, presence, mailbox, hub, fanout)

	ws := chat.NewWSGateway(log, router, presence, hub, fanout, auth)
	rest := chat.NewHTTPHandler(log, router)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     compositeStore{st, mbCloser},
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		rest:      rest,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.rest)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, chat.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, chat.NewMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, err
	}

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore.Close() is a no-op
	msgStore, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	if err := msgStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return dbStore{pool: pool, msgStore: msgStore}, pool, true, msgStore, nil
}

// newMailbox decides between the shared Redis mailbox and per-process memory.
func newMailbox(ctx context.Context, cfg Config, log Logger) (chat.Mailbox, Store, error) {
	if cfg.RedisURL == "" {
		log.Info("mailbox.memory")
		return chat.NewMemoryMailbox(), nopStore{}, nil
	}

	mb, err := chat.NewRedisMailbox(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	log.Info("mailbox.redis")
	return mb, closerStore{mb}, nil
}

func newAuthenticator(cfg Config, log Logger) (chat.Authenticator, error) {
	if cfg.AuthHMACKey == "" {
		if cfg.RequireAuth {
			// Fail-fast: silently falling back to the trusting verifier in
			// production is unacceptable.
			return nil, errors.New("security policy: RIPPLE_REQUIRE_AUTH=true but RIPPLE_AUTH_HMAC_KEY is missing")
		}
		log.Warn("auth.insecure", "reason", "RIPPLE_AUTH_HMAC_KEY not set")
		return chat.InsecureAuthenticator{}, nil
	}

	auth, err := chat.NewHMACAuthenticator([]byte(cfg.AuthHMACKey))
	if err != nil {
		return nil, err
	}
	log.Info("auth.hmac")
	return auth, nil
}

type dbStore struct {
	pool     *pgxpool.Pool
	msgStore chat.Store
}

func (s dbStore) Close(_ context.Context) error {
	// PostgresStore.Close() is a no-op by design (pool is owned here).
	if s.msgStore != nil {
		_ = s.msgStore.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// closerStore adapts an io.Closer-shaped resource to the Store lifecycle.
type closerStore struct {
	c interface{ Close() error }
}

func (s closerStore) Close(_ context.Context) error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// compositeStore closes several resources as one.
type compositeStore []Store

func (cs compositeStore) Close(ctx context.Context) error {
	var first error
	for _, s := range cs {
		if s == nil {
			continue
		}
		if err := s.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
