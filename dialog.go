package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/stewi1014/wasmfractal/controller"
)

func CatchPanicToContext(ctxCancel context.CancelCauseFunc) {
	if v := recover(); v != nil {
		err, ok := v.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", v)
		}
		err = fmt.Errorf("%w\n%v", err, string(debug.Stack()))
		if ctxCancel != nil {
			ctxCancel(err)
		}
	}
}

// WithErrorDialogCancelCause returns a child of ctx whose cancel cause, unless
// it is context.Canceled, is shown in an error dialog over parent.
func WithErrorDialogCancelCause(parent gtk.IWindow, ctx context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		<-ctx.Done()
		err := context.Cause(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Println(err)
		glib.IdleAdd(func() {
			NewErrorDialog(parent, err)
		})
	}()
	return ctx, cancel
}

// NewErrorDialog shows err over parent. Worker errors are titled by the
// message that failed and carry their protocol code.
func NewErrorDialog(parent gtk.IWindow, err error) {
	heading, body := controller.Describe(err)

	dialog := gtk.MessageDialogNew(
		parent,
		gtk.DIALOG_DESTROY_WITH_PARENT,
		gtk.MESSAGE_ERROR,
		gtk.BUTTONS_CLOSE,
		"%s",
		heading,
	)
	dialog.FormatSecondaryText("%s", body)
	dialog.SetTitle(heading)
	dialog.Connect("response", dialog.Destroy)

	// Let the detail be copied into a bug report.
	if area, err := dialog.GetMessageArea(); err != nil {
		log.Println(err)
	} else {
		area.GetChildren().Foreach(func(item interface{}) {
			if widget, ok := item.(*gtk.Widget); ok {
				if l, err := gtk.WidgetToLabel(widget); err == nil {
					l.SetSelectable(true)
				}
			}
		})
	}

	dialog.SetKeepAbove(true)
	dialog.Run()
}

// NewProgressDialog follows the save of name until ctx is done.
// Cancel calls onCancel; the dialog closes itself with ctx.
func NewProgressDialog(
	ctx context.Context,
	parent gtk.IWindow,
	name string,
	onCancel func(),
) (*ProgressDialog, error) {
	var err error
	dialog := &ProgressDialog{}
	dialog.Dialog, err = gtk.DialogNewWithButtons(
		"Save Image",
		parent,
		gtk.DIALOG_DESTROY_WITH_PARENT,
		[]interface{}{"Cancel", gtk.RESPONSE_CANCEL},
	)
	if err != nil {
		return nil, fmt.Errorf("gtk.DialogNewWithButtons: %w", err)
	}
	dialog.SetKeepAbove(true)
	dialog.Connect("response", func(_ *gtk.Dialog, response gtk.ResponseType) {
		if response == gtk.RESPONSE_CANCEL {
			onCancel()
		}
	})

	ca, err := dialog.GetContentArea()
	if err != nil {
		return nil, fmt.Errorf("GetContentArea: %w", err)
	}
	label, err := gtk.LabelNew(controller.SaveTitle(name))
	if err != nil {
		return nil, fmt.Errorf("gtk.LabelNew: %w", err)
	}
	ca.Add(label)

	dialog.bar, err = gtk.ProgressBarNew()
	if err != nil {
		return nil, fmt.Errorf("gtk.ProgressBarNew: %w", err)
	}
	dialog.bar.SetShowText(true)
	dialog.bar.SetSizeRequest(500, 80)
	ca.Add(dialog.bar)

	go dialog.update(ctx)
	return dialog, nil
}

// ProgressDialog shows the fraction of an image encoded so far.
type ProgressDialog struct {
	*gtk.Dialog
	bar *gtk.ProgressBar

	progress func() float64
}

// Follow sets the encode progress the dialog polls. Call it on the main loop.
func (dialog *ProgressDialog) Follow(progress func() float64) {
	dialog.progress = progress
}

func (dialog *ProgressDialog) update(ctx context.Context) {
	ticker := time.NewTicker(time.Second / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			glib.IdleAdd(func() {
				if dialog.progress != nil {
					dialog.bar.SetFraction(dialog.progress())
				}
			})
		case <-ctx.Done():
			glib.IdleAdd(dialog.Destroy)
			return
		}
	}
}
