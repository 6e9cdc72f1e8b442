//go:build linux || darwin

package qio

import (
	"golang.org/x/sys/unix"

	"github.com/legamerdc/qio/bufpool"
)

// command 为可恢复的发送任务。execute 返回 done=false 表示 socket
// 暂不可写, 任务保留现场等待重试; 返回错误时任务已自行收尾,
// 错误只用于记日志, 不跨出事件循环。
// discard 在停机排队未完成时释放持有的缓冲。
type command interface {
	execute() (done bool, err error)
	discard()
}

// writeCommand 驱动引擎产包并发送, 三态:
// 初始(buf=nil) / 挂起(pending 保留未发报文) / 完成(缓冲已归还)。
type writeCommand struct {
	pool *bufpool.Pool
	sock datagramSocket
	sess *session
	dst  unix.Sockaddr // 创建时定格的目的地址
	size int

	buf     *bufpool.Buffer
	pending []byte // 挂起的整报文, 引用 buf.B
}

func newWriteCommand(pool *bufpool.Pool, sock datagramSocket, sess *session, size int) *writeCommand {
	return &writeCommand{pool: pool, sock: sock, sess: sess, dst: sess.peer, size: size}
}

func (c *writeCommand) execute() (bool, error) {
	// 先补发挂起报文, 不重新产包
	if len(c.pending) > 0 {
		n, err := c.sock.Send(c.pending, c.dst)
		if err != nil {
			c.release()
			return true, err
		}
		if n == 0 {
			return false, nil
		}
		c.pending = nil
	}
	if c.buf == nil {
		c.buf = c.pool.Acquire(c.size)
	}
	for {
		n, err := c.sess.eng.Produce(c.buf.B)
		if err != nil {
			c.release()
			return true, err
		}
		// 每次产包后刷新空闲超时, 包括收尾的 0 字节产出
		c.sess.setDeadline(c.sess.eng.NextTimeout())
		if n == 0 {
			c.release()
			return true, nil
		}
		sent, err := c.sock.Send(c.buf.B[:n], c.dst)
		if err != nil {
			c.release()
			return true, err
		}
		if sent == 0 {
			c.pending = c.buf.B[:n]
			return false, nil
		}
	}
}

func (c *writeCommand) release() {
	if c.buf != nil {
		c.pool.Release(c.buf)
		c.buf = nil
	}
	c.pending = nil
}

func (c *writeCommand) discard() { c.release() }

// timeoutCommand 在首次执行前通知引擎超时, 跨挂起恢复只通知一次;
// 会话在扫描时已判关闭的, 排干剩余报文后终结引擎。
type timeoutCommand struct {
	writeCommand
	closing  bool
	notified bool
}

func newTimeoutCommand(pool *bufpool.Pool, sock datagramSocket, sess *session, size int, closing bool) *timeoutCommand {
	return &timeoutCommand{
		writeCommand: writeCommand{pool: pool, sock: sock, sess: sess, dst: sess.peer, size: size},
		closing:      closing,
	}
}

func (c *timeoutCommand) execute() (bool, error) {
	if !c.notified {
		c.notified = true
		c.sess.eng.OnTimeout()
	}
	done, err := c.writeCommand.execute()
	if done && c.closing {
		if cerr := c.sess.eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return done, err
}

func (c *timeoutCommand) discard() {
	c.writeCommand.discard()
	if c.closing {
		_ = c.sess.eng.Close()
	}
}

// rawWriteCommand 原样发送一段协商应答, 不归属任何会话。
type rawWriteCommand struct {
	pool *bufpool.Pool
	sock datagramSocket
	dst  unix.Sockaddr

	buf     *bufpool.Buffer
	pending []byte
}

func newRawWriteCommand(pool *bufpool.Pool, sock datagramSocket, dst unix.Sockaddr, buf *bufpool.Buffer, n int) *rawWriteCommand {
	return &rawWriteCommand{pool: pool, sock: sock, dst: dst, buf: buf, pending: buf.B[:n]}
}

func (c *rawWriteCommand) execute() (bool, error) {
	n, err := c.sock.Send(c.pending, c.dst)
	if err != nil {
		c.discard()
		return true, err
	}
	if n == 0 {
		return false, nil
	}
	c.discard()
	return true, nil
}

func (c *rawWriteCommand) discard() {
	if c.buf != nil {
		c.pool.Release(c.buf)
		c.buf = nil
	}
	c.pending = nil
}
