package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/gotk3/gotk3/gtk"
	"github.com/stewi1014/wasmfractal/controller"
	"github.com/stewi1014/wasmfractal/worker"
)

func main() {
	cfg, err := controller.LoadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}

	if cfg.Debug {
		worker.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	signalContext, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	mainContext, mainQuit := context.WithCancelCause(signalContext)

	go func() {
		defer CatchPanicToContext(mainQuit)
		if cfg.Headless {
			mainQuit(controller.RunHeadless(mainContext, cfg, os.Stdout))
			return
		}
		mainQuit(gtkMain(mainContext, cfg))
	}()

	<-mainContext.Done()
	if err := context.Cause(mainContext); err != nil && !errors.Is(err, context.Canceled) {
		log.Println(err)
		os.Exit(1)
	}
}

func gtkMain(ctx context.Context, cfg controller.Config) error {
	runtime.LockOSThread()

	gtk.Init(&os.Args)
	app, err := NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	return app.Run()
}
