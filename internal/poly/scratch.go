package poly

import (
	"sync"

	"github.com/nholt/zkminer/internal/field"
)

// Scratch buffers for the multiplication pipeline, pooled by size class
// to keep the transform loop allocation-free at steady state.
var scratchSizes = [...]int{64, 256, 1024, 4096, 16384, 65536}

var scratchPools = [...]sync.Pool{
	{New: func() any { return make([]field.Element, 64) }},
	{New: func() any { return make([]field.Element, 256) }},
	{New: func() any { return make([]field.Element, 1024) }},
	{New: func() any { return make([]field.Element, 4096) }},
	{New: func() any { return make([]field.Element, 16384) }},
	{New: func() any { return make([]field.Element, 65536) }},
}

func scratchPoolIndex(size int) int {
	for i, s := range scratchSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// acquireScratch returns a zeroed element slice of exactly the given
// length. Slices too large for any size class are allocated directly.
//
//	buf := acquireScratch(size)
//	defer releaseScratch(buf)
func acquireScratch(size int) []field.Element {
	idx := scratchPoolIndex(size)
	if idx < 0 {
		return make([]field.Element, size)
	}
	buf := scratchPools[idx].Get().([]field.Element)
	buf = buf[:cap(buf)]
	for i := range buf {
		buf[i] = field.Zero
	}
	return buf[:size]
}

// releaseScratch returns a slice obtained from acquireScratch to its
// pool. Safe to call with nil.
func releaseScratch(buf []field.Element) {
	if buf == nil {
		return
	}
	c := cap(buf)
	idx := scratchPoolIndex(c)
	if idx >= 0 && scratchSizes[idx] == c {
		scratchPools[idx].Put(buf[:c])
	}
}
