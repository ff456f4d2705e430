package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJournalTimestampsStrictlyIncrease(t *testing.T) {
	j := NewJournal(nil)

	// Checkpoints compare with ">", so equal stamps would let an entry hide
	// behind an already-advanced checkpoint. The clock must never repeat,
	// however fast entries are stamped.
	prev := j.now()
	for i := 0; i < 10000; i++ {
		ts := j.now()
		assert.Greater(t, ts, prev)
		prev = ts
	}
}
