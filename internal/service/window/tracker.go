package window

// DefaultSize is the number of prices kept per symbol.
const DefaultSize = 5

// ring is a fixed-capacity FIFO of prices in insertion order.
type ring struct {
	buf   []float64
	start int
	n     int
}

func (r *ring) push(p float64) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	// full: overwrite oldest
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) mean() float64 {
	if r.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.n; i++ {
		sum += r.buf[(r.start+i)%len(r.buf)]
	}
	return sum / float64(r.n)
}

func (r *ring) values() []float64 {
	out := make([]float64, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Tracker keeps a bounded trailing window per display symbol. Windows are
// created on first use and live as long as the tracker. It is not safe for
// concurrent use; the aggregation cycle is its only writer.
type Tracker struct {
	size    int
	windows map[string]*ring
}

// New creates a tracker holding at most size prices per symbol.
func New(size int) *Tracker {
	if size <= 0 {
		size = DefaultSize
	}
	return &Tracker{size: size, windows: make(map[string]*ring)}
}

// Size returns the window bound.
func (t *Tracker) Size() int { return t.size }

// Update appends price to symbol's window, evicting the oldest entry past the
// bound, and returns the mean of the window including price.
func (t *Tracker) Update(symbol string, price float64) float64 {
	w, ok := t.windows[symbol]
	if !ok {
		w = &ring{buf: make([]float64, t.size)}
		t.windows[symbol] = w
	}
	w.push(price)
	return w.mean()
}

// Window returns a copy of symbol's prices, oldest first.
func (t *Tracker) Window(symbol string) []float64 {
	w, ok := t.windows[symbol]
	if !ok {
		return nil
	}
	return w.values()
}

// Len returns how many prices symbol's window holds.
func (t *Tracker) Len(symbol string) int {
	if w, ok := t.windows[symbol]; ok {
		return w.n
	}
	return 0
}
