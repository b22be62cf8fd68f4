package controller

import (
	"context"
	"fmt"
	"io"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/protocol"
	"golang.org/x/sync/errgroup"
)

// RunHeadless renders the configured frame and writes it to cfg.Output.
// With cfg.Watch it keeps going until ctx is done, rewriting the output every
// time a module file changes; worker errors are then printed instead of returned.
func RunHeadless(ctx context.Context, cfg Config, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)

	conn, err := StartWorker(ctx, g, cfg.Transport, cfg.WorkerOptions()...)
	if err != nil {
		return err
	}
	c := New(conn)

	g.Go(func() error {
		defer c.Close()

		if err := c.Install(ctx, cfg); err != nil {
			return err
		}
		if err := c.Render(ctx, cfg.Request()); err != nil {
			return err
		}
		if cfg.Watch {
			g.Go(func() error {
				return c.WatchModules(ctx, cfg)
			})
		}

		return c.Listen(ctx, Handler{
			Progress: func(fraction float64) {
				fmt.Fprintf(out, "\rrendering %3.0f%%", fraction*100)
			},
			Paint: func(img *pixels.Buffer) error {
				fmt.Fprintln(out)
				if err := SaveImage(cfg.Output, img); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", cfg.Output)

				if cfg.Watch {
					return nil
				}
				return ErrStop
			},
			Error: func(e *protocol.Error) error {
				if cfg.Watch {
					fmt.Fprintln(out, e)
					return nil
				}
				return e
			},
		})
	})

	return g.Wait()
}
