package theme

import "math"

const paletteSteps = 256

func init() {
	NewBuiltin(Builtin{
		Name:  "simple",
		Steps: paletteSteps,
		Color: func(steps uint32, _, _ float64) uint32 {
			level := uint8(steps)
			return RGB(level, level, level)
		},
	})

	NewBuiltin(Builtin{
		Name:  "red",
		Steps: paletteSteps,
		Color: func(steps uint32, _, _ float64) uint32 {
			return RGB(uint8(steps), 0, 0)
		},
	})

	NewBuiltin(Builtin{
		Name:  "green",
		Steps: paletteSteps,
		Color: func(steps uint32, _, _ float64) uint32 {
			return RGB(0, uint8(steps), 0)
		},
	})

	NewBuiltin(Builtin{
		Name:  "blue",
		Steps: paletteSteps,
		Color: func(steps uint32, _, _ float64) uint32 {
			return RGB(0, 0, uint8(steps))
		},
	})

	// position tints by distance from the axes.
	NewBuiltin(Builtin{
		Name:  "position",
		Steps: paletteSteps,
		Color: func(steps uint32, re, im float64) uint32 {
			return RGB(
				saturate(math.Abs(re)*256/2),
				uint8(steps),
				saturate(math.Abs(im)*256/2),
			)
		},
	})
}
