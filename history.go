package kayero

// History is a persistent stack of document snapshots, most recent on top.
// Push and Pop never modify the receiver, so every Document can keep its own
// view of the stack while sharing the common tail with its neighbours.
// The nil *History is the empty stack.
type History struct {
	top  *Document
	rest *History
	size int
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return h.size
}

// Push returns a new stack with d on top.
func (h *History) Push(d *Document) *History {
	return &History{top: d, rest: h, size: h.Len() + 1}
}

// Pop returns the most recent snapshot and the stack beneath it.
// Popping the empty stack returns (nil, nil).
func (h *History) Pop() (*Document, *History) {
	if h == nil {
		return nil, nil
	}
	return h.top, h.rest
}

// Equal reports whether both stacks hold structurally equal snapshots.
func (h *History) Equal(o *History) bool {
	for h != o {
		if h.Len() != o.Len() || !h.top.Equal(o.top) {
			return false
		}
		h, o = h.rest, o.rest
	}
	return true
}
