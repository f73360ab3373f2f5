// Package bytespool keeps size-classed scratch buffers for copying payloads
// between guest memory and sockets.
package bytespool

import "sync"

// Size classes start at MinPoolSize and double up to MaxPoolSize, which
// covers the largest UDP datagram.
const (
	numPools    = 6
	MinPoolSize = 2048
	MaxPoolSize = MinPoolSize << (numPools - 1)
)

var (
	pools     [numPools]sync.Pool
	poolSizes [numPools]int
)

func init() {
	size := MinPoolSize
	for i := range numPools {
		n := size
		pools[i].New = func() any {
			b := make([]byte, n)
			return &b
		}
		poolSizes[i] = size
		size *= 2
	}
}

func class(size int) int {
	for i, ps := range poolSizes {
		if size <= ps {
			return i
		}
	}
	return -1
}

// Get returns a slice of length size. Sizes outside the pooled classes are
// allocated directly.
func Get(size int) []byte {
	if size < MinPoolSize || size > MaxPoolSize {
		return make([]byte, size)
	}
	bp := pools[class(size)].Get().(*[]byte)
	return (*bp)[:size]
}

// Put returns b to its size class. Slices that did not come from Get are
// dropped.
func Put(b []byte) {
	c := cap(b)
	if c < MinPoolSize || c > MaxPoolSize {
		return
	}
	i := class(c)
	if poolSizes[i] != c {
		return
	}
	b = b[:c]
	pools[i].Put(&b)
}
