// Command fabricclient dials a fabricserver instance over HTTP and
// invokes the demo "demo.echo" procedure, wrapped in the retry and
// per-attempt timeout reference middlewares. It's a runnable smoke test
// for the client package, mirroring the teacher's pattern of a minimal
// caller exercising the whole stack end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/faberic/fabric/client"
	"github.com/faberic/fabric/internal/config"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/middleware"
	"github.com/faberic/fabric/middleware/retry"
	"github.com/faberic/fabric/middleware/timeoutmw"
	"github.com/faberic/fabric/transport/httptransport"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.MustLoad[config.ClientConfig]()

	tr := httptransport.New(cfg.ServerURL)
	defer tr.Close()

	c := client.New(tr,
		client.WithMiddleware(
			middleware.Declared{Middleware: retry.New(retry.Config{MaxRetries: cfg.RequestRetries, Base: 50 * time.Millisecond})},
			middleware.Declared{Middleware: timeoutmw.PerAttempt(5 * time.Second)},
		),
	)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.Call(ctx, method.Method{Service: "demo", Operation: "echo"}, map[string]any{"hello": "fabric"})
	if err != nil {
		logger.Fatal("call failed", zap.Error(err))
	}

	fmt.Fprintf(os.Stdout, "demo.echo -> %v\n", result)
}
