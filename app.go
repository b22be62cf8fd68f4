package main

import (
	"context"
	"fmt"

	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/stewi1014/wasmfractal/controller"
	"golang.org/x/sync/errgroup"
)

func NewApplication(ctx context.Context, cfg controller.Config) (*Application, error) {
	app, err := gtk.ApplicationNew("com.github.stewi1014.wasmfractal", glib.APPLICATION_FLAGS_NONE)
	if err != nil {
		return nil, fmt.Errorf("gtk.ApplicationNew failed: %w", err)
	}

	a := &Application{
		Application: app,
		cfg:         cfg,
	}
	a.ctx, a.quit = context.WithCancelCause(ctx)
	a.group, a.groupCtx = errgroup.WithContext(a.ctx)

	app.Connect("activate", a.onActivate)
	return a, nil
}

// Application owns the worker and the window talking to it.
type Application struct {
	*gtk.Application
	cfg controller.Config

	ctx  context.Context
	quit context.CancelCauseFunc

	group    *errgroup.Group
	groupCtx context.Context
	ctrl     *controller.Controller
}

func (a *Application) onActivate(app *gtk.Application) {
	if a.ctrl != nil {
		return
	}

	conn, err := controller.StartWorker(a.groupCtx, a.group, a.cfg.Transport, a.cfg.WorkerOptions()...)
	if err != nil {
		a.quit(err)
		return
	}
	a.ctrl = controller.New(conn)

	window := NewRenderWindow(app, a.ctrl, a.cfg, a.groupCtx, a.quit)
	if window == nil {
		return
	}
	window.Connect("destroy", func() {
		a.quit(nil)
	})
	window.SetTitle("WasmFractal")

	a.group.Go(func() error {
		err := window.handleReceive(a.groupCtx)
		a.quit(err)
		return err
	})
	if a.cfg.Watch {
		a.group.Go(func() error {
			return a.ctrl.WatchModules(a.groupCtx, a.cfg)
		})
	}
}

// Run blocks until the window closes or the context is cancelled.
func (a *Application) Run() error {
	go func() {
		<-a.ctx.Done()
		glib.IdleAdd(a.Quit)
	}()
	a.Application.Run(nil)

	a.quit(nil)
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if err := a.group.Wait(); err != nil {
		return err
	}
	return context.Cause(a.ctx)
}
