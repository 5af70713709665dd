package state

// ProgressMap maps a transfer name to its completion percentage.
//
// A ProgressMap is never modified after it has been handed out: updates go
// through MergeProgress, which returns a new map. Readers holding an older map
// keep seeing a consistent snapshot.
type ProgressMap map[string]int

// CompletePercent is the percentage at which a transfer counts as done.
const CompletePercent = 100

// MergeProgress returns a copy of old with name set to progress.
//
// Values are taken as delivered. A lower value arriving after a higher one
// replaces it, so displayed progress can move backwards when the push channel
// reorders messages.
func MergeProgress(old ProgressMap, name string, progress int) ProgressMap {
	merged := make(ProgressMap, len(old)+1)
	for k, v := range old {
		merged[k] = v
	}
	merged[name] = progress
	return merged
}

// IsComplete reports whether a percentage means the transfer finished.
func IsComplete(progress int) bool {
	return progress >= CompletePercent
}

// Get returns the percentage for name and whether it is tracked.
func (m ProgressMap) Get(name string) (int, bool) {
	v, ok := m[name]
	return v, ok
}

// InFlight counts transfers that have not reached 100.
func (m ProgressMap) InFlight() int {
	n := 0
	for _, v := range m {
		if !IsComplete(v) {
			n++
		}
	}
	return n
}

// Clone returns a mutable copy.
func (m ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
