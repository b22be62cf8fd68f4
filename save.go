package main

import (
	"context"
	"fmt"
	"image"

	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/stewi1014/wasmfractal/controller"
	"github.com/stewi1014/wasmfractal/pixels"
)

// askSaveName runs a file chooser and returns the chosen name, or "" if cancelled.
func askSaveName(window gtk.IWindow, suggested string) (string, error) {
	chooser, err := gtk.FileChooserDialogNewWith2Buttons(
		"Save Image",
		window,
		gtk.FILE_CHOOSER_ACTION_SAVE,
		"Cancel", gtk.RESPONSE_CANCEL,
		"Save", gtk.RESPONSE_ACCEPT,
	)
	if err != nil {
		return "", fmt.Errorf("gtk.FileChooserDialogNewWith2Buttons: %w", err)
	}
	defer chooser.Destroy()

	chooser.SetDoOverwriteConfirmation(true)
	chooser.SetCurrentName(suggested)
	if chooser.Run() != gtk.RESPONSE_ACCEPT {
		return "", nil
	}
	return chooser.GetFilename(), nil
}

// save encodes img into name in the background, showing progress over window.
// Failures are shown in an error dialog.
func save(ctx context.Context, window gtk.IWindow, name string, img *pixels.Buffer) {
	ctx, cancel := WithErrorDialogCancelCause(window, ctx)
	defer CatchPanicToContext(cancel)

	progressDialog, err := NewProgressDialog(ctx, window, name, func() { cancel(context.Canceled) })
	if err != nil {
		cancel(err)
		return
	}
	progressDialog.ShowAll()

	var encoded image.Image = img
	progressDialog.Follow(controller.WrapWithProgress(&encoded))

	go func() {
		defer CatchPanicToContext(cancel)
		err := controller.SaveImage(name, encoded)
		glib.IdleAdd(func() {
			cancel(err)
		})
	}()
}
