package bot

import (
	"math/rand"
	"sync"
	"time"
)

// Chooser picks an index in [0, n). It breaks ties between equally ranked
// cells and lets tests pin the choice.
type Chooser interface {
	Intn(n int) int
}

type randomChooser struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomChooser returns a Chooser backed by math/rand. A zero seed uses
// the current time.
func NewRandomChooser(seed int64) Chooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &randomChooser{rnd: rand.New(rand.NewSource(seed))} //nolint: gosec // game tie-breaks, not security
}

func (that *randomChooser) Intn(n int) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rnd.Intn(n)
}

// FixedChooser always returns the same offset, clamped to n-1.
type FixedChooser int

func (that FixedChooser) Intn(n int) int {
	if int(that) >= n {
		return n - 1
	}

	return int(that)
}
