package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/stewi1014/wasmfractal/controller"
	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stewi1014/wasmfractal/render"
	"github.com/stewi1014/wasmfractal/theme"
)

// zoomStep is how far one scroll click zooms.
const zoomStep = 0.5

func NewRenderWindow(
	app *gtk.Application,
	ctrl *controller.Controller,
	cfg controller.Config,
	ctx context.Context,
	quit func(error),
) *RenderWindow {
	var err error
	w := &RenderWindow{
		ctx:  ctx,
		quit: quit,
		ctrl: ctrl,
		mode: cfg.Mode,
	}

	w.ApplicationWindow, err = gtk.ApplicationWindowNew(app)
	if err != nil {
		quit(fmt.Errorf("gtk.ApplicationWindowNew: %w", err))
		return nil
	}
	w.SetDefaultSize(getWindowSize())

	controls, err := w.buildControls(cfg)
	if err != nil {
		quit(err)
		return nil
	}

	w.image, _ = gtk.ImageNew()
	w.imageBox, _ = gtk.EventBoxNew()
	w.imageBox.Add(w.image)
	w.imageBox.AddEvents(int(gdk.BUTTON_PRESS_MASK) | int(gdk.SCROLL_MASK))
	w.imageBox.Connect("button-press-event", w.button)
	w.imageBox.Connect("scroll-event", w.scroll)

	w.progress, _ = gtk.ProgressBarNew()
	w.progress.SetShowText(true)
	w.status, _ = gtk.LabelNew("")

	view, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 4)
	view.PackStart(w.imageBox, true, true, 0)
	view.PackStart(w.progress, false, false, 0)
	view.PackStart(w.status, false, false, 0)

	layout, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 8)
	layout.SetBorderWidth(8)
	layout.PackStart(controls, false, false, 0)
	layout.PackStart(view, true, true, 0)

	w.Add(layout)
	w.ShowAll()

	WrapErrorDialog(w, func() error {
		return ctrl.Install(ctx, cfg)
	})()

	return w
}

func getWindowSize() (width, height int) {
	width = 1200
	height = 800

	display, err := gdk.DisplayGetDefault()
	if err != nil {
		return
	}

	monitor, err := display.GetPrimaryMonitor()
	if err != nil {
		return
	}

	width = int(float32(monitor.GetGeometry().GetWidth()) * .6)
	height = int(float32(monitor.GetGeometry().GetHeight()) * .6)
	return
}

// RenderWindow drives a worker through a controller and shows what it paints.
// Fields are only touched on the GTK main loop.
type RenderWindow struct {
	*gtk.ApplicationWindow
	imageBox *gtk.EventBox
	image    *gtk.Image
	progress *gtk.ProgressBar
	status   *gtk.Label

	width, height *gtk.SpinButton
	x, y, zoom    *gtk.SpinButton
	themes        *gtk.ComboBoxText
	saveButton    *gtk.Button

	ctx  context.Context
	quit func(error)
	ctrl *controller.Controller

	mode string
	// pending holds requests sent but not yet painted or failed, oldest first.
	pending  []controller.Request
	rendered controller.Request
	last     *pixels.Buffer
}

func (w *RenderWindow) buildControls(cfg controller.Config) (*gtk.Grid, error) {
	grid, err := gtk.GridNew()
	if err != nil {
		return nil, fmt.Errorf("gtk.GridNew: %w", err)
	}
	grid.SetRowSpacing(4)
	grid.SetColumnSpacing(8)

	row := 0
	attach := func(name string, widget gtk.IWidget) {
		label, _ := gtk.LabelNew(name)
		grid.Attach(label, 0, row, 1, 1)
		grid.Attach(widget, 1, row, 1, 1)
		row++
	}
	spin := func(lo, hi, step float64, digits uint, value float64) *gtk.SpinButton {
		s, _ := gtk.SpinButtonNewWithRange(lo, hi, step)
		s.SetDigits(digits)
		s.SetValue(value)
		return s
	}

	w.width = spin(1, 16384, 1, 0, float64(cfg.Width))
	w.height = spin(1, 16384, 1, 0, float64(cfg.Height))
	w.x = spin(-4, 4, 0.01, 15, cfg.X)
	w.y = spin(-4, 4, 0.01, 15, cfg.Y)
	w.zoom = spin(-16, 1000, zoomStep, 2, cfg.Zoom)
	attach("Width", w.width)
	attach("Height", w.height)
	attach("Real", w.x)
	attach("Imaginary", w.y)
	attach("Zoom", w.zoom)

	w.themes, _ = gtk.ComboBoxTextNew()
	for i := 0; i < theme.NumBuiltins(); i++ {
		b := theme.GetBuiltin(i)
		w.themes.AppendText(b.Name)
		if b.Name == cfg.Theme {
			w.themes.SetActive(i)
		}
	}
	w.themes.Connect("changed", func(combo *gtk.ComboBoxText) {
		name := combo.GetActiveText()
		if name == "" {
			return
		}
		WrapErrorDialog(w, func() error {
			return w.ctrl.SendTheme(w.ctx, name)
		})()
	})
	attach("Theme", w.themes)

	themeFile, err := wasmChooser("Theme Module", cfg.Theme)
	if err != nil {
		return nil, err
	}
	themeFile.Connect("file-set", func(chooser *gtk.FileChooserButton) {
		name := chooser.GetFilename()
		WrapErrorDialog(w, func() error {
			return w.ctrl.SendTheme(w.ctx, name)
		})()
	})
	attach("Theme module", themeFile)

	kernelFile, err := wasmChooser("Kernel Module", cfg.Kernel)
	if err != nil {
		return nil, err
	}
	kernelFile.Connect("file-set", func(chooser *gtk.FileChooserButton) {
		name := chooser.GetFilename()
		WrapErrorDialog(w, func() error {
			return w.ctrl.SendKernel(w.ctx, name)
		})()
	})
	attach("Kernel module", kernelFile)

	nativeButton, _ := gtk.ButtonNewWithLabel("Render native")
	nativeButton.Connect("clicked", func() {
		w.render(controller.ModeNative)
	})
	grid.Attach(nativeButton, 0, row, 2, 1)
	row++

	wasmButton, _ := gtk.ButtonNewWithLabel("Render kernel")
	wasmButton.Connect("clicked", func() {
		w.render(controller.ModeWasm)
	})
	grid.Attach(wasmButton, 0, row, 2, 1)
	row++

	w.saveButton, _ = gtk.ButtonNewWithLabel("Save")
	w.saveButton.SetSensitive(false)
	w.saveButton.Connect("clicked", w.saveClicked)
	grid.Attach(w.saveButton, 0, row, 2, 1)

	return grid, nil
}

func wasmChooser(title, current string) (*gtk.FileChooserButton, error) {
	chooser, err := gtk.FileChooserButtonNew(title, gtk.FILE_CHOOSER_ACTION_OPEN)
	if err != nil {
		return nil, fmt.Errorf("gtk.FileChooserButtonNew: %w", err)
	}

	filter, err := gtk.FileFilterNew()
	if err != nil {
		return nil, fmt.Errorf("gtk.FileFilterNew: %w", err)
	}
	filter.SetName("WebAssembly modules")
	filter.AddPattern("*.wasm")
	chooser.AddFilter(filter)

	if filepath.Ext(current) == ".wasm" {
		if abs, err := filepath.Abs(current); err == nil {
			chooser.SetFilename(abs)
		}
	}
	return chooser, nil
}

func (w *RenderWindow) request(mode string) controller.Request {
	return controller.Request{
		Mode:     mode,
		Width:    uint32(w.width.GetValueAsInt()),
		Height:   uint32(w.height.GetValueAsInt()),
		Viewport: render.NewViewport(w.x.GetValue(), w.y.GetValue(), w.zoom.GetValue()),
	}
}

func (w *RenderWindow) render(mode string) {
	w.mode = mode
	req := w.request(mode)
	w.progress.SetFraction(0)
	w.status.SetText("rendering")

	if err := w.ctrl.Render(w.ctx, req); err != nil {
		log.Println(err)
		NewErrorDialog(w, err)
		return
	}
	w.pending = append(w.pending, req)
}

// finished drops the oldest pending request and returns it.
func (w *RenderWindow) finished() (controller.Request, bool) {
	if len(w.pending) == 0 {
		return controller.Request{}, false
	}
	req := w.pending[0]
	w.pending = w.pending[1:]
	return req, true
}

// button centres the view on the clicked point of the last painted image.
func (w *RenderWindow) button(box *gtk.EventBox, event *gdk.Event) bool {
	button := gdk.EventButtonNewFromEvent(event)
	if button.Type() != gdk.EVENT_BUTTON_PRESS || w.last == nil {
		return false
	}

	px, py, ok := w.imagePixel(box, button.X(), button.Y())
	if !ok {
		return false
	}

	center := w.rendered.Viewport.Point(px, py, w.last.Width(), w.last.Height())
	w.x.SetValue(center.X())
	w.y.SetValue(center.Y())
	w.render(w.mode)
	return true
}

func (w *RenderWindow) scroll(box *gtk.EventBox, event *gdk.Event) bool {
	scroll := gdk.EventScrollNewFromEvent(event)

	switch scroll.Direction() {
	case gdk.SCROLL_UP:
		w.zoom.SetValue(w.zoom.GetValue() + zoomStep)
	case gdk.SCROLL_DOWN:
		w.zoom.SetValue(w.zoom.GetValue() - zoomStep)
	default:
		return false
	}

	w.render(w.mode)
	return true
}

// imagePixel maps a point in box onto the shown image, which GTK centres in the box.
func (w *RenderWindow) imagePixel(box *gtk.EventBox, x, y float64) (px, py uint32, ok bool) {
	imgW, imgH := float64(w.last.Width()), float64(w.last.Height())
	x -= max(float64(box.GetAllocatedWidth())-imgW, 0) / 2
	y -= max(float64(box.GetAllocatedHeight())-imgH, 0) / 2
	if x < 0 || y < 0 || x >= imgW || y >= imgH {
		return 0, 0, false
	}
	return uint32(x), uint32(y), true
}

func (w *RenderWindow) show(img *pixels.Buffer) {
	req, ok := w.finished()
	pixbuf, err := NewPixbuf(img)
	if err != nil {
		log.Println(err)
		NewErrorDialog(w, err)
		return
	}

	if ok {
		w.rendered = req
	}
	w.image.SetFromPixbuf(pixbuf)
	w.last = img
	w.progress.SetFraction(1)
	w.status.SetText(fmt.Sprintf("%dx%d at %v, zoom %v", img.Width(), img.Height(), w.rendered.Viewport.Center, w.rendered.Viewport.Zoom))
	w.saveButton.SetSensitive(true)
}

func (w *RenderWindow) saveClicked() {
	if w.last == nil {
		return
	}
	name, err := askSaveName(w, "fractal.png")
	if err != nil {
		NewErrorDialog(w, err)
		return
	}
	if name != "" {
		save(w.ctx, w, name, w.last)
	}
}

// handleReceive feeds worker messages to the window until the worker hangs up.
func (w *RenderWindow) handleReceive(ctx context.Context) error {
	return w.ctrl.Listen(ctx, controller.Handler{
		Progress: func(fraction float64) {
			glib.IdleAdd(func() {
				w.progress.SetFraction(fraction)
			})
		},
		Loaded: func(resource string) {
			glib.IdleAdd(func() {
				w.status.SetText("loaded " + resource)
			})
		},
		Paint: func(img *pixels.Buffer) error {
			glib.IdleAdd(func() {
				w.show(img)
			})
			return nil
		},
		Error: func(e *protocol.Error) error {
			log.Println(e)
			glib.IdleAdd(func() {
				if e.Ref == (&protocol.RenderNative{}).Type() || e.Ref == (&protocol.RenderWasm{}).Type() {
					w.finished()
				}
				w.status.SetText(e.Error())
				NewErrorDialog(w, e)
			})
			return nil
		},
	})
}
