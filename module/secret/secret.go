// Package secret provides an owned buffer type for transient key material.
//
// Zero-filling secrets before releasing them is a security invariant of the
// DKG and signing flows, not an optimization. Making the wipe a method of an
// owned type keeps the invariant enforceable with a single deferred call at
// the top of the function that produced the secret, instead of relying on
// every exit path remembering to clean up.
package secret

// Buffer owns a byte slice holding secret material.
type Buffer struct {
	data []byte
}

// Wrap takes ownership of data. The caller must not retain its own reference.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes exposes the underlying slice. The slice becomes invalid after Wipe.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Wipe zero-fills the buffer. Safe to call multiple times and on nil.
func (b *Buffer) Wipe() {
	if b == nil {
		return
	}
	Zero(b.data)
	b.data = nil
}

// Zero zero-fills a raw slice in place.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Guard collects buffers and raw slices so one deferred call wipes them all,
// regardless of how the surrounding function exits.
type Guard struct {
	buffers []*Buffer
	slices  [][]byte
}

func NewGuard() *Guard {
	return &Guard{}
}

// Add registers a buffer for wiping.
func (g *Guard) Add(b *Buffer) *Buffer {
	g.buffers = append(g.buffers, b)
	return b
}

// AddBytes registers a raw slice for wiping.
func (g *Guard) AddBytes(data []byte) []byte {
	g.slices = append(g.slices, data)
	return data
}

// Wipe zero-fills everything registered with the guard.
func (g *Guard) Wipe() {
	for _, b := range g.buffers {
		b.Wipe()
	}
	for _, s := range g.slices {
		Zero(s)
	}
}
