package transform

// DirtyRegistry tracks the minimal set of dirty roots: nodes whose transform
// changed and none of whose ancestors is tracked. Roots are kept in
// registration order so every peer flushes in the same sequence.
type DirtyRegistry struct {
	roots    []*Node // nil entries are tombstones
	index    map[*Node]int
	live     int
	draining bool
}

// NewDirtyRegistry creates an empty registry.
func NewDirtyRegistry() *DirtyRegistry {
	return &DirtyRegistry{index: make(map[*Node]int)}
}

// Len returns the number of tracked roots.
func (r *DirtyRegistry) Len() int {
	return r.live
}

// Contains reports whether n is a tracked root.
func (r *DirtyRegistry) Contains(n *Node) bool {
	_, ok := r.index[n]
	return ok
}

// Roots returns the handles of tracked roots in registration order.
func (r *DirtyRegistry) Roots() []Handle {
	out := make([]Handle, 0, r.live)
	for _, n := range r.roots {
		if n != nil {
			out = append(out, n.handle)
		}
	}
	return out
}

func (r *DirtyRegistry) add(n *Node) {
	if _, ok := r.index[n]; ok {
		return
	}
	r.index[n] = len(r.roots)
	r.roots = append(r.roots, n)
	r.live++
}

func (r *DirtyRegistry) remove(n *Node) {
	i, ok := r.index[n]
	if !ok {
		return
	}
	r.roots[i] = nil
	delete(r.index, n)
	r.live--
	if !r.draining && len(r.roots) > 32 && r.live < len(r.roots)/2 {
		r.compact()
	}
}

func (r *DirtyRegistry) compact() {
	kept := r.roots[:0]
	for _, n := range r.roots {
		if n != nil {
			r.index[n] = len(kept)
			kept = append(kept, n)
		}
	}
	clear(r.roots[len(kept):])
	r.roots = kept
}

func (r *DirtyRegistry) reset() {
	clear(r.roots)
	r.roots = r.roots[:0]
	clear(r.index)
	r.live = 0
}
