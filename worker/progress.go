package worker

import (
	"context"
	"math"

	"github.com/stewi1014/wasmfractal/protocol"
)

// progressEmitter forwards one render's progress to the controller,
// clamped to [0, 1] and never going backwards.
type progressEmitter struct {
	ctx     context.Context
	session *Session
	last    float64
}

func (p *progressEmitter) emit(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	fraction = min(max(fraction, 0), 1)
	if fraction < p.last {
		return
	}

	p.last = fraction
	p.session.send(p.ctx, &protocol.Progress{Progress: fraction})
}
