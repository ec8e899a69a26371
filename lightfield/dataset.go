package lightfield

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/tsawler/go-lfca/tensor"
)

// ErrTooFewLightFields is returned when the store holds fewer light fields than requested.
var ErrTooFewLightFields = errors.New("dataset holds fewer light fields than requested")

// Dataset is the interface consumed by DataLoader. Get returns one sample
// shaped [u, v, c, x, y].
type Dataset interface {
	Len() int
	Get(idx int) (*tensor.Tensor, error)
}

// Options describe the samples a PatchDataset produces.
type Options struct {
	SampleNum     int
	PatchSize     int
	AngResolution int
	ChannelNum    int
}

// PatchDataset serves random spatial crops of the first SampleNum light
// fields in a Store. Each Get draws a new crop position.
type PatchDataset struct {
	store *Store
	opts  Options
	rng   *rand.Rand
}

// NewPatchDataset checks that store can serve samples of the requested
// geometry. rng drives the crop positions and must not be shared with
// another goroutine while the dataset is in use.
func NewPatchDataset(store *Store, opts Options, rng *rand.Rand) (*PatchDataset, error) {
	if opts.SampleNum <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", opts.SampleNum)
	}
	if opts.PatchSize <= 0 {
		return nil, fmt.Errorf("patch size must be positive, got %d", opts.PatchSize)
	}
	if len(store.LightFields) < opts.SampleNum {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrTooFewLightFields, len(store.LightFields), opts.SampleNum)
	}
	if store.AngResolution != opts.AngResolution {
		return nil, fmt.Errorf("dataset angular resolution %d does not match configured %d",
			store.AngResolution, opts.AngResolution)
	}
	if store.Channels != opts.ChannelNum {
		return nil, fmt.Errorf("dataset has %d channels, configured %d", store.Channels, opts.ChannelNum)
	}
	if store.Height < opts.PatchSize || store.Width < opts.PatchSize {
		return nil, fmt.Errorf("light fields of %dx%d are smaller than patch size %d",
			store.Height, store.Width, opts.PatchSize)
	}

	return &PatchDataset{store: store, opts: opts, rng: rng}, nil
}

func (d *PatchDataset) Len() int {
	return d.opts.SampleNum
}

// SampleShape returns [u, v, c, x, y] for one sample.
func (d *PatchDataset) SampleShape() []int {
	a, p := d.opts.AngResolution, d.opts.PatchSize
	return []int{a, a, d.opts.ChannelNum, p, p}
}

func (d *PatchDataset) Get(idx int) (*tensor.Tensor, error) {
	if idx < 0 || idx >= d.Len() {
		return nil, fmt.Errorf("index %d out of range [0, %d)", idx, d.Len())
	}

	s := d.store
	p := d.opts.PatchSize
	x0 := d.rng.Intn(s.Height - p + 1)
	y0 := d.rng.Intn(s.Width - p + 1)

	src := s.LightFields[idx]
	views := s.AngResolution * s.AngResolution * s.Channels
	data := make([]float32, views*p*p)
	for plane := 0; plane < views; plane++ {
		srcPlane := src[plane*s.Height*s.Width:]
		dstPlane := data[plane*p*p:]
		for x := 0; x < p; x++ {
			row := srcPlane[(x0+x)*s.Width+y0:]
			copy(dstPlane[x*p:(x+1)*p], row[:p])
		}
	}

	return tensor.NewTensor(d.SampleShape(), data)
}
