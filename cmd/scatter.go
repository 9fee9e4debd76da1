// cmd/scatter.go

package main

import (
	"math/rand"
	"os"
	"slices"
	"time"

	"BytesQuilt/pkg/quilt"
	"BytesQuilt/pkg/utils"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func scatterFlags() *cli.Command {
	return &cli.Command{
		Name:      "scatter",
		Usage:     "deliver a file out of order and reassemble it",
		ArgsUsage: "FILE",
		Action:    scatter,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "frame-size",
				Value: 1024,
				Usage: "bytes per delivered frame",
			},
			&cli.Float64Flag{
				Name:  "drop",
				Value: 0.1,
				Usage: "fraction of frames withheld on the first pass",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "seed for the delivery order (default: current time)",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "disable the progress bar",
			},
		},
	}
}

func scatter(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return errors.New("FILE is needed")
	}
	path := c.Args().Get(0)
	if !utils.Exists(path) {
		return errors.Errorf("%s does not exist", path)
	}
	frameSize := c.Int("frame-size")
	if frameSize <= 0 {
		return errors.New("frame-size must be positive")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	seed := c.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	frames := make([]int, 0, (len(data)+frameSize-1)/frameSize)
	for off := 0; off < len(data); off += frameSize {
		frames = append(frames, off)
	}
	rng.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })

	progress, bar := utils.NewDynProgressBar("scatter: ", c.Bool("no-progress"))
	bar.SetTotal(int64(len(frames)), false)

	drop := c.Float64("drop")
	q := quilt.WithCapacity(len(data))
	delivered := 0
	for _, off := range frames {
		end := utils.Min(off+frameSize, len(data))
		// Never withhold the frame that ends the stream: gaps are only
		// tracked below the frontier, so the last frame must land for
		// every withheld frame to show up in the gap report.
		if end < len(data) && rng.Float64() < drop {
			continue
		}
		gap, err := q.PutAt(off, data[off:end])
		if err != nil {
			return errors.Wrapf(err, "put frame at %d", off)
		}
		if gap != nil {
			logger.Debugf("new gap at %d (%d bytes)", gap.Offset, gap.Length)
		}
		delivered++
		bar.Increment()
	}
	logger.Infof("first pass delivered %d of %d frames, %d of %d bytes (seed %d)",
		delivered, len(frames), q.Len(), len(data), seed)

	// Backfill pass: ask the quilt what is missing and resend it, frame by
	// frame. Collect first; the ledger changes under the fills.
	for _, m := range slices.Collect(q.MissingSegments()) {
		for off := range m.OffsetsFor(frameSize) {
			if _, err := q.PutAt(off, data[off:off+frameSize]); err != nil {
				return errors.Wrapf(err, "backfill frame at %d", off)
			}
			bar.Increment()
		}
		// OffsetsFor leaves the trailing partial frame of the gap to us.
		if rem := m.Length % frameSize; rem > 0 {
			off := m.Offset + m.Length - rem
			if _, err := q.PutAt(off, data[off:off+rem]); err != nil {
				return errors.Wrapf(err, "backfill tail of gap at %d", off)
			}
			bar.Increment()
		}
	}
	bar.SetTotal(int64(len(frames)), true)
	progress.Wait()

	out, err := q.Assemble()
	if err != nil {
		return errors.Wrap(err, "assemble")
	}
	if len(out) != len(data) || xxhash.Sum64(out) != xxhash.Sum64(data) {
		return errors.Errorf("reassembled %d bytes do not match the input", len(out))
	}
	logger.Infof("reassembled %d bytes from %d frames, digest %016x",
		len(out), len(frames), xxhash.Sum64(out))
	return nil
}
