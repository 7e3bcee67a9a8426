package index

import (
	"fmt"
	"math"
	"math/rand"
)

// SplitOptions control the train/validation/test partition.
type SplitOptions struct {
	// Train is the fraction of all records that go to training.
	Train float64

	// Val is the fraction of the remainder that goes to validation;
	// what is left becomes the test set.
	Val float64

	// Seed makes the shuffle reproducible.
	Seed int64
}

// DefaultSplitOptions gives an 80/10/10 split.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{Train: 0.8, Val: 0.5, Seed: 42}
}

// Splits holds the partitioned records.
type Splits struct {
	Train      []Record
	Validation []Record
	Test       []Record
}

// Total returns the number of records across all splits.
func (s Splits) Total() int {
	return len(s.Train) + len(s.Validation) + len(s.Test)
}

// Split shuffles records with opts.Seed and partitions them. Sizes are
// rounded half-to-even. The input slice is not modified.
func Split(records []Record, opts SplitOptions) (Splits, error) {
	if opts.Train < 0 || opts.Train > 1 {
		return Splits{}, fmt.Errorf("train fraction %v out of range [0,1]", opts.Train)
	}
	if opts.Val < 0 || opts.Val > 1 {
		return Splits{}, fmt.Errorf("val fraction %v out of range [0,1]", opts.Val)
	}

	shuffled := make([]Record, len(records))
	copy(shuffled, records)

	// #nosec G404 - reproducible split, not security sensitive
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTrain := int(math.RoundToEven(opts.Train * float64(len(shuffled))))
	rest := shuffled[nTrain:]
	nVal := int(math.RoundToEven(opts.Val * float64(len(rest))))

	return Splits{
		Train:      shuffled[:nTrain],
		Validation: rest[:nVal],
		Test:       rest[nVal:],
	}, nil
}
