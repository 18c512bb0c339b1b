package poll

// DedupWindow is a bounded set of recently seen signatures, in insertion
// order. It only prevents reprocessing within a warm process: trimming
// keeps the newest entries, so a signature older than the window may
// legitimately be seen again. The window is owned by the poll goroutine and
// needs no locking.
type DedupWindow struct {
	seen  map[string]struct{}
	order []string
}

// NewDedupWindow creates an empty window.
func NewDedupWindow() *DedupWindow {
	return &DedupWindow{seen: make(map[string]struct{})}
}

// Contains reports whether the signature is in the window.
func (w *DedupWindow) Contains(sig string) bool {
	_, ok := w.seen[sig]
	return ok
}

// Add records a signature. Adding an existing signature is a no-op.
func (w *DedupWindow) Add(sig string) {
	if _, ok := w.seen[sig]; ok {
		return
	}
	w.seen[sig] = struct{}{}
	w.order = append(w.order, sig)
}

// Remove drops a signature from the window. The insertion-order slot is
// reclaimed lazily on the next Trim.
func (w *DedupWindow) Remove(sig string) {
	delete(w.seen, sig)
}

// Len returns the number of live entries.
func (w *DedupWindow) Len() int {
	return len(w.seen)
}

// Trim retains only the most recent max live entries by insertion order.
// This is an approximation, not a strict LRU: it bounds growth, nothing
// more.
func (w *DedupWindow) Trim(max int) {
	if len(w.seen) <= max && len(w.order) <= max {
		// Compact stale order entries left behind by Remove.
		if len(w.order) > len(w.seen) {
			w.compact()
		}
		return
	}

	w.compact()
	if excess := len(w.order) - max; excess > 0 {
		for _, sig := range w.order[:excess] {
			delete(w.seen, sig)
		}
		w.order = append([]string(nil), w.order[excess:]...)
	}
}

// compact rewrites order to contain only live entries.
func (w *DedupWindow) compact() {
	live := w.order[:0]
	for _, sig := range w.order {
		if _, ok := w.seen[sig]; ok {
			live = append(live, sig)
		}
	}
	w.order = live
}
