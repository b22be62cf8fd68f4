// Package controller drives a render worker: it loads configuration, starts
// the worker on a transport, sends resources and commands and saves what
// comes back.
package controller

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stewi1014/wasmfractal/render"
	"github.com/stewi1014/wasmfractal/wasmhost"
	"github.com/stewi1014/wasmfractal/worker"
)

var ErrBadConfig = errors.New("invalid configuration")

const (
	ModeNative = "native"
	ModeWasm   = "wasm"

	TransportChan = "chan"
	TransportGob  = "gob"
)

// Duration reads "1.5s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Width  uint    `toml:"width"`
	Height uint    `toml:"height"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Zoom   float64 `toml:"zoom"`

	// Mode is native or wasm.
	Mode string `toml:"mode"`
	// Theme is a built-in theme name or the path of a .wasm theme module.
	Theme  string `toml:"theme"`
	Kernel string `toml:"kernel"`

	Output   string `toml:"output"`
	Headless bool   `toml:"headless"`
	Watch    bool   `toml:"watch"`
	Debug    bool   `toml:"debug"`

	// Transport is chan for in-process mailboxes or gob for an encoded stream.
	Transport        string   `toml:"transport"`
	MemoryLimitPages uint     `toml:"memory_limit_pages"`
	CallTimeout      Duration `toml:"call_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Width:     800,
		Height:    600,
		X:         -0.5,
		Zoom:      8,
		Mode:      ModeNative,
		Theme:     "simple",
		Output:    "fractal.png",
		Transport: TransportChan,
	}
}

// LoadConfig builds a Config from defaults, then the TOML file named by
// -config if given, then the remaining flags.
func LoadConfig(args []string) (Config, error) {
	cfg := DefaultConfig()
	var configPath string

	fs := flag.NewFlagSet("wasmfractal", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "TOML configuration file")
	fs.UintVar(&cfg.Width, "width", cfg.Width, "image width in pixels")
	fs.UintVar(&cfg.Height, "height", cfg.Height, "image height in pixels")
	fs.Float64Var(&cfg.X, "x", cfg.X, "real part of the image center")
	fs.Float64Var(&cfg.Y, "y", cfg.Y, "imaginary part of the image center")
	fs.Float64Var(&cfg.Zoom, "zoom", cfg.Zoom, "base 2 log of pixels per unit")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "renderer: native or wasm")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "built-in theme name or .wasm theme module")
	fs.StringVar(&cfg.Kernel, "kernel", cfg.Kernel, ".wasm render kernel module")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "image file written in headless mode (.png or .bmp)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "render without a window")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload modules when their files change")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "worker transport: chan or gob")
	fs.UintVar(&cfg.MemoryLimitPages, "memory-limit", cfg.MemoryLimitPages, "module memory limit in 64KiB pages")
	fs.DurationVar(&cfg.CallTimeout.Duration, "call-timeout", cfg.CallTimeout.Duration, "limit on a single module call")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		if err := cfg.readFile(configPath); err != nil {
			return Config{}, err
		}
		// flags win over the file
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) readFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("%w: image size %vx%v", ErrBadConfig, c.Width, c.Height)
	case c.Mode != ModeNative && c.Mode != ModeWasm:
		return fmt.Errorf("%w: unknown mode %q", ErrBadConfig, c.Mode)
	case c.Mode == ModeWasm && c.Kernel == "":
		return fmt.Errorf("%w: wasm mode needs a kernel", ErrBadConfig)
	case c.Transport != TransportChan && c.Transport != TransportGob:
		return fmt.Errorf("%w: unknown transport %q", ErrBadConfig, c.Transport)
	case c.Theme == "":
		return fmt.Errorf("%w: no theme", ErrBadConfig)
	case c.Headless && c.Output == "":
		return fmt.Errorf("%w: headless mode needs an output file", ErrBadConfig)
	}
	return nil
}

// Request is the render described by the configuration.
func (c Config) Request() Request {
	return Request{
		Mode:     c.Mode,
		Width:    uint32(c.Width),
		Height:   uint32(c.Height),
		Viewport: render.NewViewport(c.X, c.Y, c.Zoom),
	}
}

func (c Config) WorkerOptions() []worker.Option {
	return []worker.Option{
		worker.WithLoaderConfig(wasmhost.Config{
			MemoryLimitPages: uint32(c.MemoryLimitPages),
			CallTimeout:      c.CallTimeout.Duration,
		}),
	}
}

// isModulePath reports whether a theme setting names a module file rather than a built-in.
func isModulePath(name string) bool {
	return filepath.Ext(name) == ".wasm"
}
