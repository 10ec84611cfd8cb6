// pool.go: Read buffer pool for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps oversized read buffers out of the pool
const maxPooledBuffer = 4 << 20

// bufferPool provides pooled *bytes.Buffer instances for reading encoded assets.
var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// getBuffer retrieves a *bytes.Buffer from the pool.
func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// putBuffer resets and returns a *bytes.Buffer to the pool.
func putBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
