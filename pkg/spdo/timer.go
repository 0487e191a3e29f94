package spdo

// All ticks come from a free running uint32 counter, comparisons are
// done on the signed difference so that they survive the wraparound.

// elapsed returns true once now has reached deadline
func elapsed(now uint32, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// since returns the number of ticks from start to now
func since(now uint32, start uint32) uint32 {
	return now - start
}
