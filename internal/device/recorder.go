package device

import (
	"sync"
)

// Recorder is an in-memory Transport. It keeps a copy of every frame and is
// used for dry runs and as the fallback when no I2C bus is available.
type Recorder struct {
	Addr uint16

	mu     sync.Mutex
	frames [][]byte
	fail   error
	limit  int
}

// NewRecorder returns a recorder that keeps at most limit frames (oldest are
// dropped). limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{Addr: DefaultAddr, limit: limit}
}

// FailWith makes every following Write fail with err. nil restores normal
// behaviour.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Write implements Transport.
func (r *Recorder) Write(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return &TransportError{Addr: r.Addr, Len: len(b), Err: r.fail}
	}

	cp := make([]byte, len(b))
	copy(cp, b)
	r.frames = append(r.frames, cp)
	if r.limit > 0 && len(r.frames) > r.limit {
		r.frames = r.frames[len(r.frames)-r.limit:]
	}
	return nil
}

// Frames returns copies of the recorded frames, oldest first.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		cp := make([]byte, len(f))
		copy(cp, f)
		out[i] = cp
	}
	return out
}

// Last returns the most recent frame.
func (r *Recorder) Last() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return nil, false
	}
	f := r.frames[len(r.frames)-1]
	cp := make([]byte, len(f))
	copy(cp, f)
	return cp, true
}

// Len returns the number of frames kept.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *Recorder) String() string { return "recorder" }
