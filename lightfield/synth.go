package lightfield

import (
	"fmt"
	"math"
	"math/rand"
)

// SynthOptions control Synthesize.
type SynthOptions struct {
	Count         int
	AngResolution int
	Channels      int
	Height        int
	Width         int
	// MaxDisparity bounds the per-view pixel shift of each scene layer.
	MaxDisparity float64
}

// wave is one sinusoidal component of a procedural texture.
type wave struct {
	fx, fy, phase, amp float64
}

type layer struct {
	waves     []wave
	disparity float64
	// foreground layers cover only the box [x0,x1)x[y0,y1) of the center view
	x0, x1, y0, y1 float64
	foreground     bool
}

func (l *layer) value(x, y float64, channel int) float64 {
	var v float64
	for _, w := range l.waves {
		v += w.amp * math.Sin(w.fx*x+w.fy*y+w.phase+float64(channel))
	}
	return v
}

func (l *layer) covers(x, y float64) bool {
	return !l.foreground || (x >= l.x0 && x < l.x1 && y >= l.y0 && y < l.y1)
}

// Synthesize builds light fields of two-layer Lambertian scenes: a textured
// background and an occluding textured box, each shifted between views in
// proportion to its disparity. Values lie in [0, 1].
func Synthesize(opts SynthOptions, rng *rand.Rand) (*Store, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("light field count must be positive, got %d", opts.Count)
	}
	s := &Store{
		AngResolution: opts.AngResolution,
		Channels:      opts.Channels,
		Height:        opts.Height,
		Width:         opts.Width,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	for i := 0; i < opts.Count; i++ {
		s.LightFields = append(s.LightFields, synthesizeScene(s, opts.MaxDisparity, rng))
	}
	return s, nil
}

func randomLayer(h, w int, maxDisparity float64, foreground bool, rng *rand.Rand) *layer {
	l := &layer{
		disparity:  (2*rng.Float64() - 1) * maxDisparity,
		foreground: foreground,
	}
	for k := 0; k < 4; k++ {
		l.waves = append(l.waves, wave{
			fx:    rng.Float64() * 0.6,
			fy:    rng.Float64() * 0.6,
			phase: rng.Float64() * 2 * math.Pi,
			amp:   0.5 + rng.Float64(),
		})
	}
	if foreground {
		bh := float64(h) * (0.25 + 0.5*rng.Float64())
		bw := float64(w) * (0.25 + 0.5*rng.Float64())
		l.x0 = rng.Float64() * (float64(h) - bh)
		l.y0 = rng.Float64() * (float64(w) - bw)
		l.x1, l.y1 = l.x0+bh, l.y0+bw
	}
	return l
}

func synthesizeScene(s *Store, maxDisparity float64, rng *rand.Rand) []float32 {
	back := randomLayer(s.Height, s.Width, maxDisparity, false, rng)
	front := randomLayer(s.Height, s.Width, maxDisparity, true, rng)
	// the occluder is always nearer than the background
	if front.disparity < back.disparity {
		front.disparity, back.disparity = back.disparity, front.disparity
	}

	raw := make([]float64, s.ElemsPerLightField())
	center := float64(s.AngResolution-1) / 2
	i := 0
	for u := 0; u < s.AngResolution; u++ {
		for v := 0; v < s.AngResolution; v++ {
			du, dv := float64(u)-center, float64(v)-center
			for c := 0; c < s.Channels; c++ {
				for x := 0; x < s.Height; x++ {
					for y := 0; y < s.Width; y++ {
						fx := float64(x) + front.disparity*du
						fy := float64(y) + front.disparity*dv
						if front.covers(fx, fy) {
							raw[i] = front.value(fx, fy, c)
						} else {
							raw[i] = back.value(float64(x)+back.disparity*du, float64(y)+back.disparity*dv, c)
						}
						i++
					}
				}
			}
		}
	}

	lo, hi := raw[0], raw[0]
	for _, v := range raw {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	out := make([]float32, len(raw))
	for j, v := range raw {
		out[j] = float32((v - lo) / span)
	}
	return out
}
