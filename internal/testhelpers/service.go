package testhelpers

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/greeter-service/internal/greeting"
	httphandler "github.com/kjstillabower/greeter-service/internal/http"
	"github.com/kjstillabower/greeter-service/internal/server"
)

// ServiceOptions tunes StartService. The zero value serves the default greeting with ops endpoints on.
type ServiceOptions struct {
	Greeting        string
	DisableOps      bool
	Addr            string // default 127.0.0.1:0
	ShutdownTimeout time.Duration
}

// StartService wires the full greeter stack the way cmd/service does, binds an
// ephemeral port and serves in the background. The server is shut down on test cleanup.
func StartService(t testing.TB, opts ServiceOptions) *server.Server {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	handler := httphandler.NewHandler(greeting.New(opts.Greeting), &httphandler.HealthConfig{Version: "test"}, logger)
	router := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:      handler,
		Logger:       logger,
		OpsEndpoints: !opts.DisableOps,
	})

	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	srv := server.New(addr, router, logger, server.Options{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("shutdown service: %v", err)
		}
	})
	return srv
}
