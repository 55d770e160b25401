// ABOUTME: Application container wiring config, store, settings, transport and tools with dig.
// ABOUTME: Run validates and activates tools, then serves their routes over HTTP until canceled.

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/dig"

	"github.com/aduitools/adui/internal/config"
	"github.com/aduitools/adui/internal/settings"
	"github.com/aduitools/adui/internal/store"
	"github.com/aduitools/adui/internal/toolkit"
	"github.com/aduitools/adui/internal/tools"
	"github.com/aduitools/adui/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// App holds the resolved services. Callers use the getters; they never need
// to import dig directly.
type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	store         store.Store
	settings      *settings.Service
	conversations *store.ConversationsRepository
	registry      *toolkit.Registry
	host          *toolkit.Host

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
	closeErr  error
}

// New builds and wires all services from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := dig.New()

	// opened lets a failed wiring release the database it already opened.
	var opened store.Store
	providers := []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return logger },
		func(cfg *config.Config) (store.Store, error) {
			st, err := newStore(cfg)
			opened = st
			return st, err
		},
		newSettings,
		newConversations,
		newTransport,
		newDeps,
		newRegistry,
		newHost,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *App
	err := d.Invoke(func(
		st store.Store,
		svc *settings.Service,
		convs *store.ConversationsRepository,
		reg *toolkit.Registry,
		host *toolkit.Host,
	) {
		result = &App{
			cfg:           cfg,
			logger:        logger.With("component", "app"),
			store:         st,
			settings:      svc,
			conversations: convs,
			registry:      reg,
			host:          host,
		}
	})
	if err != nil {
		if opened != nil {
			_ = opened.Close()
		}
		return nil, fmt.Errorf("wiring application: %w", dig.RootCause(err))
	}
	return result, nil
}

func (a *App) Settings() *settings.Service                   { return a.settings }
func (a *App) Conversations() *store.ConversationsRepository { return a.conversations }
func (a *App) Registry() *toolkit.Registry                   { return a.registry }
func (a *App) Host() *toolkit.Host                           { return a.host }

// Start validates the registry and activates every tool. Validation errors
// refuse startup; tool hook failures only disable the tool. It runs once.
func (a *App) Start(ctx context.Context) error {
	a.startOnce.Do(func() {
		if err := a.registry.Validate(); err != nil {
			a.startErr = fmt.Errorf("validating tools: %w", err)
			return
		}
		if err := a.host.Activate(ctx); err != nil {
			a.startErr = fmt.Errorf("activating tools: %w", err)
			return
		}
		for _, st := range a.host.States() {
			if st.Err != nil {
				a.logger.Warn("tool unavailable", "tool_id", st.Meta.ID, "state", st.State, "error", st.Err)
			}
		}
	})
	return a.startErr
}

// Handler returns the HTTP handler exposing health and the active tools' routes.
func (a *App) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := toolkit.Mount(mux, a.host.Routes()); err != nil {
		return nil, err
	}
	mux.HandleFunc("GET /health", handleHealth)
	// Anything not claimed by a tool falls back to the tools index.
	mux.Handle("/", http.RedirectHandler("/"+toolkit.MountPath+"/", http.StatusFound))
	return mux, nil
}

// Run starts the application and serves HTTP on the configured address until
// ctx is canceled. The store is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.Close() }()

	ln, err := net.Listen("tcp", a.cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.HTTPAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the application and serves HTTP on ln until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	handler, err := a.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		a.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		a.logger.Error("server error", "error", serverErr)
	}

	// ctx is already canceled here, so shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	if shutdownErr != nil {
		return fmt.Errorf("HTTP shutdown: %w", shutdownErr)
	}
	return nil
}

// Close releases the store. Safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.store.Close()
	})
	return a.closeErr
}

// handleHealth returns 200 OK if the server is alive.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func newStore(cfg *config.Config) (store.Store, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func newSettings(cfg *config.Config, st store.Store, logger *slog.Logger) (*settings.Service, error) {
	opts := []settings.Option{
		settings.WithEncryptedKeys(cfg.Settings.EncryptedKeys...),
		settings.WithLogger(logger),
	}
	if len(cfg.Settings.EncryptedKeys) > 0 {
		key, err := settings.LoadOrCreateMasterKey(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		cipher, err := settings.NewCipher(key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, settings.WithCipher(cipher))
	}
	return settings.New(st, opts...)
}

func newConversations(st store.Store) *store.ConversationsRepository {
	return store.NewConversationsRepository(st)
}

func newTransport(cfg *config.Config, logger *slog.Logger) (*transport.Client, error) {
	return transport.New(transport.Options{
		Timeout:   cfg.Network.Timeout,
		RateLimit: cfg.Network.RateLimit,
		Burst:     cfg.Network.Burst,
		Proxy: transport.ProxyConfig{
			Mode: cfg.Network.Proxy.Mode,
			URL:  cfg.Network.Proxy.URL,
		},
		Logger: logger,
	})
}

func newDeps(
	svc *settings.Service,
	convs *store.ConversationsRepository,
	client *transport.Client,
	logger *slog.Logger,
) toolkit.Deps {
	return toolkit.Deps{
		Settings: svc,
		Storage:  toolkit.StorageService{Conversations: convs},
		Net:      client,
		Log:      logger.With("component", "tools"),
	}
}

func newRegistry(cfg *config.Config, logger *slog.Logger) *toolkit.Registry {
	reg := toolkit.NewRegistry(logger)
	tools.RegisterAll(reg, cfg.Tools.Disabled...)
	return reg
}

func newHost(cfg *config.Config, reg *toolkit.Registry, deps toolkit.Deps, logger *slog.Logger) (*toolkit.Host, error) {
	opts := []toolkit.HostOption{toolkit.WithLogger(logger)}
	if cfg.Tools.ConcurrentActivation > 1 {
		opts = append(opts, toolkit.WithConcurrentActivation(cfg.Tools.ConcurrentActivation))
	}
	return toolkit.NewHost(reg, deps, opts...)
}
