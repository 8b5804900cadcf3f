// Command fabricserver wires a Server to the HTTP listener, registers a
// demonstration procedure, and attaches the reference middlewares
// (tracing, rate-limit, circuit-breaker) ahead of procedure dispatch.
// It's the thin composition root the teacher leaves to its caller
// (BX-D-mini-RPC ships no cmd/ of its own); every component it wires
// already lives in a package with its own tests.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/internal/config"
	"github.com/faberic/fabric/middleware"
	"github.com/faberic/fabric/middleware/breaker"
	"github.com/faberic/fabric/middleware/ratelimitmw"
	"github.com/faberic/fabric/middleware/tracingmw"
	"github.com/faberic/fabric/procedure"
	"github.com/faberic/fabric/server"
	"github.com/faberic/fabric/transport/httptransport"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.MustLoad[config.ServerConfig]()

	brk := breaker.New(breaker.Config{FailureThreshold: cfg.BreakerFailureThreshold, ResetTimeout: 30 * time.Second})
	rl := ratelimitmw.New(ratelimitmw.Config{Rate: cfg.RateLimit, Burst: cfg.RateBurst, Strategy: ratelimitmw.Reject})

	srv := server.New(
		server.WithRegistry(procedure.New()),
		server.WithMiddleware(
			middleware.Declared{Middleware: tracingmw.New(), Provides: []string{"trace_id", "span_id"}},
			middleware.Declared{Middleware: rl},
			middleware.Declared{Middleware: brk.Middleware()},
		),
		server.WithHooks(server.Hooks{
			OnRequest: func(env *fabric.Envelope) {
				logger.Debug("request", zap.String("method", env.Method.String()))
			},
			OnResponse: func(env *fabric.Envelope, item *fabric.ResponseItem) {
				logger.Debug("response", zap.String("method", env.Method.String()), zap.Bool("success", item.Status.Success))
			},
		}),
	)

	if err := srv.Register(demoEchoProcedure()); err != nil {
		logger.Fatal("register procedure", zap.Error(err))
	}

	srv.Attach(httptransport.NewListener(cfg.ListenAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("start server", zap.Error(err))
	}
	logger.Info("fabricserver listening", zap.String("addr", cfg.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := srv.Stop(10 * time.Second); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}

// demoEchoProcedure is a minimal procedure so fabricserver is runnable
// out of the box against fabricclient.
func demoEchoProcedure() *procedure.Procedure {
	return &procedure.Procedure{
		Path:         procedure.Path{"demo", "echo"},
		InputSchema:  procedure.NoopValidator{},
		OutputSchema: procedure.NoopValidator{},
		Handler: func(ctx context.Context, input any, pctx *procedure.CallContext) (any, error) {
			return map[string]any{"echo": input}, nil
		},
	}
}
