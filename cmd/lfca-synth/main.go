// Command lfca-synth writes a synthetic .lfd training set of layered scenes,
// for smoke-testing lfca-train without a captured dataset.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/tsawler/go-lfca/lightfield"
)

func main() {
	opts := lightfield.SynthOptions{}
	var out string
	var seed int64

	flag.IntVar(&opts.Count, "count", 10, "Number of light fields")
	flag.IntVar(&opts.AngResolution, "angResolution", 7, "Angular resolution")
	flag.IntVar(&opts.Channels, "channelNum", 1, "Number of channels")
	flag.IntVar(&opts.Height, "height", 64, "Spatial height")
	flag.IntVar(&opts.Width, "width", 64, "Spatial width")
	flag.Float64Var(&opts.MaxDisparity, "maxDisparity", 1.5, "Largest per-view shift in pixels")
	flag.Int64Var(&seed, "seed", 1, "Random seed")
	flag.StringVar(&out, "out", "train_synthetic.lfd", "Output dataset path")
	flag.Parse()

	store, err := lightfield.Synthesize(opts, rand.New(rand.NewSource(seed)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if err := lightfield.WriteDataset(out, store); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d light fields (%dx%d views, %dx%d pixels, %d channels) to %s\n",
		opts.Count, opts.AngResolution, opts.AngResolution, opts.Height, opts.Width, opts.Channels, out)
}
