package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"github.com/alovak/cardflow-merchant/gateway/models"
	"github.com/alovak/cardflow-merchant/internal/middleware"
	"github.com/alovak/cardflow-merchant/internal/security"
)

// App is the merchant application: it owns the HTTP server that signs authorizations
// and answers gateway callbacks, and is responsible for starting and stopping it.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config

	// Signer defaults to a FileKeyStore over Config.CertDir.
	Signer Signer
	// Confirmer defaults to logging the confirmed order; plug in order persistence here.
	Confirmer OrderConfirmer
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "merchant"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if a.Signer == nil {
		a.Signer = security.NewFileKeyStore(a.config.CertDir)
	}
	if a.Confirmer == nil {
		a.Confirmer = OrderConfirmerFunc(func(ctx context.Context, p models.NotificationPayload) error {
			a.logger.Info("order paid",
				slog.String("order_id", p[models.FieldOrderID]),
				slog.String("xid", p[models.FieldXID]),
				slog.String("total_amount", p[models.FieldTotalAmount]),
			)
			return nil
		})
	}

	api, err := NewAPI(a.config, a.Signer, a.Confirmer, a.logger)
	if err != nil {
		return fmt.Errorf("building api: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.NewStructuredLogger(a.logger))
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := a.Signer.Sign(ctx, a.config.Credentials().Ref(), api.digest, []byte("ready")); err != nil {
			a.logger.Error("readiness probe", "err", err)
			http.Error(w, "merchant key not usable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
