package bufpool

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Buffer 的 B 字段即底层存储, 归还后不得再引用。
type Buffer = bytebufferpool.ByteBuffer

// Pool 包装 bytebufferpool 并统计取还次数, na - np 即仍在外面的 buffer 数。
// 零值可用。
type Pool struct {
	bp bytebufferpool.Pool
	na uint64 // number of acquires
	np uint64 // number of put back to pool
}

// Acquire 返回 len(b.B) == n 的 buffer, 内容未清零。
func (p *Pool) Acquire(n int) *Buffer {
	atomic.AddUint64(&p.na, uint64(1))
	b := p.bp.Get()
	if cap(b.B) < n {
		b.B = make([]byte, n)
	} else {
		b.B = b.B[:n]
	}
	return b
}

func (p *Pool) Release(b *Buffer) {
	atomic.AddUint64(&p.np, uint64(1))
	p.bp.Put(b)
}

// Outstanding 返回已取出未归还的 buffer 数。
func (p *Pool) Outstanding() uint64 {
	return atomic.LoadUint64(&p.na) - atomic.LoadUint64(&p.np)
}

// Acquired 返回累计取出次数。
func (p *Pool) Acquired() uint64 {
	return atomic.LoadUint64(&p.na)
}
