package scan

// reorder holds chunks that finished out of order until every earlier chunk
// has been released.
type reorder struct {
	pending map[int]chunkResult
	next    int
}

func newReorder(capacity int) *reorder {
	return &reorder{pending: make(map[int]chunkResult, capacity)}
}

func (r *reorder) add(res chunkResult) {
	r.pending[res.index] = res
}

// pop returns the next chunk in order if it has arrived.
func (r *reorder) pop() (chunkResult, bool) {
	res, ok := r.pending[r.next]
	if !ok {
		return chunkResult{}, false
	}
	delete(r.pending, r.next)
	r.next++
	return res, true
}

func (r *reorder) len() int { return len(r.pending) }

// drain empties the buffer, handing every held chunk to fn.
func (r *reorder) drain(fn func(chunkResult)) {
	for i, res := range r.pending {
		fn(res)
		delete(r.pending, i)
	}
}
