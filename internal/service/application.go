package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"signflow/internal/app"
)

// Version is set during build via ldflags
var Version = "dev"

// Application wraps the fx.App for service management
type Application struct {
	app      *fx.App
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// NewApplication creates a new Application instance
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:      ctx,
		cancel:   cancel,
		doneChan: make(chan struct{}),
	}
}

// Run starts the application and blocks until a signal or Shutdown.
func (a *Application) Run() {
	defer close(a.doneChan)

	a.app = fx.New(app.Options())

	if err := a.app.Start(a.ctx); err != nil {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		a.cancel()
	case <-a.ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	_ = a.app.Stop(ctx)
}

// Shutdown asks Run to stop the application. Use Wait to block until it has.
func (a *Application) Shutdown() {
	a.cancel()
}

// Wait blocks until the application exits
func (a *Application) Wait() {
	<-a.doneChan
}
