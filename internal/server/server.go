// Package server runs the echo HTTP server that exposes check runs.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/apperror"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

var Module = fx.Module("server",
	fx.Provide(NewEcho),
	fx.Invoke(StartServer),
)

// quietPaths are polled by orchestrators and scrapers and go unlogged.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/healthz": {},
	"/ready":   {},
	"/metrics": {},
}

type EchoParams struct {
	fx.In

	Config *config.Config
	Log    *slog.Logger
}

// NewEcho builds the echo instance shared by every route module.
func NewEcho(p EchoParams) *echo.Echo {
	log := p.Log.With(logger.Scope("http"))

	e := echo.New()
	e.Debug = p.Config.Debug
	e.HideBanner = true
	e.HidePort = !p.Config.Debug
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}),
		middleware.RequestID(),
		requestLogger(log),
		recoverer(log),
	)
	return e
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			_, quiet := quietPaths[c.Request().URL.Path]
			return quiet
		},
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error == nil {
				log.Info("request", attrs...)
				return nil
			}
			log.Error("request failed", append(attrs, logger.Error(v.Error))...)
			return nil
		},
	})
}

// recoverer turns a handler panic into a 500 through the error handler.
func recoverer(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("panic in handler",
				slog.String("path", c.Path()),
				logger.Error(err),
				slog.String("stack", string(stack)),
			)
			return err
		},
	})
}

// httpServer applies the configured address and timeouts.
func httpServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.ServerPort)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// StartServer serves e for the lifetime of the fx app. Shutdown waits at
// most ShutdownTimeout for in-flight runs.
func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log *slog.Logger) {
	log = log.With(logger.Scope("server"))
	srv := httpServer(cfg)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("listening",
				slog.String("address", srv.Addr),
				slog.String("environment", cfg.Environment))
			go func() {
				err := e.StartServer(srv)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			log.Info("shutting down")
			return e.Shutdown(ctx)
		},
	})
}
