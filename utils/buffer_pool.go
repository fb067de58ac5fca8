package utils

import (
	"math/bits"
	"sync"
)

const (
	minClassShift = 6  // 64 bytes
	maxClassShift = 15 // 32 KiB
)

// BufferSizeClass lists the capacities the pool keeps buffers for.
var BufferSizeClass = [...]int{64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768}

// SizeIndex maps a requested length to the smallest class that fits it,
// or -1 when n is not poolable.
func SizeIndex(n int) int {
	if n <= 0 || n > 1<<maxClassShift {
		return -1
	}
	if n <= 1<<minClassShift {
		return 0
	}
	return bits.Len(uint(n-1)) - minClassShift
}

// BufferPool hands out scratch buffers for serialization, bucketed by
// power-of-two capacity.
type BufferPool struct {
	pools [len(BufferSizeClass)]sync.Pool
}

func NewBufferPool() *BufferPool {
	var bp BufferPool
	for i, sz := range BufferSizeClass {
		size := sz
		bp.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return &bp
}

// Acquire returns a buffer of length n. Requests above the largest class
// are allocated directly and never pooled.
func (bp *BufferPool) Acquire(n int) []byte {
	idx := SizeIndex(n)
	if idx < 0 {
		return make([]byte, n)
	}
	bufPtr := bp.pools[idx].Get().(*[]byte)
	return (*bufPtr)[:n]
}

// AcquireZeroed is Acquire followed by clearing the returned bytes.
// Marshal uses it so that bytes a formula leaves unwritten are zero.
func (bp *BufferPool) AcquireZeroed(n int) []byte {
	buf := bp.Acquire(n)
	clear(buf)
	return buf
}

// Release returns buf to its class. Buffers whose capacity is not an
// exact class are dropped.
func (bp *BufferPool) Release(buf []byte) {
	c := cap(buf)
	if c < 1<<minClassShift || c > 1<<maxClassShift || c&(c-1) != 0 {
		return
	}
	idx := bits.Len(uint(c)) - 1 - minClassShift
	bp.pools[idx].Put(&buf)
}
