package groups

import "sync"

// AliasTracker remembers, per source, which of the two rotating full-mode
// aliases ("S-FULL1"/"S-FULL2") was most recently written. Selection is
// in-process only and resets to alias 1 on restart; the spec explicitly
// accepts that a restart may leave one cycle's worth of stale entries on
// the alias that was active before the process stopped.
type AliasTracker struct {
	mu      sync.Mutex
	current map[string]int // source -> 1 or 2; absent means "never written, next is 1"
}

// NewAliasTracker returns a tracker with no source history.
func NewAliasTracker() *AliasTracker {
	return &AliasTracker{current: make(map[string]int)}
}

// aliasName returns "<source>-FULL1" or "<source>-FULL2" for n in {1,2}.
func aliasName(source string, n int) string {
	if n == 2 {
		return source + "-FULL2"
	}
	return source + "-FULL1"
}

// Rotate returns the alias to write the next full push to (the one not
// currently active) and the alias to clear afterward (the one that was
// active), then records the new alias as active. The very first full push
// for a source writes to FULL1 and clears FULL2.
func (t *AliasTracker) Rotate(source string) (writeTo, clear string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	activeN := t.current[source] // zero value 0 treated as "none yet"
	var nextN int
	if activeN == 1 {
		nextN = 2
	} else {
		nextN = 1
	}
	t.current[source] = nextN

	prevN := activeN
	if prevN == 0 {
		// Nothing has ever been written; clear the alias we are not
		// about to use so a stale pre-restart FULL2 cannot linger.
		if nextN == 1 {
			prevN = 2
		} else {
			prevN = 1
		}
	}
	return aliasName(source, nextN), aliasName(source, prevN)
}
