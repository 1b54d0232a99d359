package flash

// Heartbeat is an activity indicator, not a measure of work done. The
// installer reports no structured progress, so the value only shows that
// the run is alive: it advances by one per tick while started and wraps at 100.
type Heartbeat struct {
	value   int
	running bool
}

func (h *Heartbeat) Start() {
	h.value = 0
	h.running = true
}

func (h *Heartbeat) Stop() { h.running = false }

func (h *Heartbeat) Running() bool { return h.running }

// Tick advances the counter if started and returns the current value.
func (h *Heartbeat) Tick() int {
	if h.running {
		h.value = (h.value + 1) % 100
	}
	return h.value
}

func (h *Heartbeat) Value() int { return h.value }
