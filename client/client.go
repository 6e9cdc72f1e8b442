package client

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/jpillora/backoff"

	"github.com/legamerdc/qio/protocol"
)

var (
	// ErrReset 表示服务端对本连接回了 RESET。
	ErrReset = errors.New("client: connection reset by server")

	errHandshake = errors.New("client: handshake failed")
)

// Client 为演示协议的阻塞客户端, 一条逻辑连接占一个 UDP socket。
// 不做并发保护, 单 goroutine 使用。
type Client struct {
	conn    *net.UDPConn
	id      uint32
	timeout time.Duration
	rb      []byte
}

// Dial 分配连接标识并完成 INIT 握手, timeout 约束握手与后续 Recv。
func Dial(network, address string, timeout time.Duration) (*Client, error) {
	raddr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, err
	}
	nc, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return nil, err
	}
	var id uint32
	for id == 0 {
		id = rand.Uint32()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{conn: nc, id: id, timeout: timeout, rb: make([]byte, 64<<10)}
	if err := c.handshake(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// handshake 发 INIT 等 INIT 确认, UDP 会丢包, 带退避重发几次。
func (c *Client) handshake() error {
	bo := &backoff.Backoff{Min: 50 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(bo.Duration())
		}
		if err := c.send(protocol.KindInit, nil, false); err != nil {
			lastErr = err
			continue
		}
		h, _, err := c.recv()
		if err != nil {
			lastErr = err
			continue
		}
		if h.Kind != protocol.KindInit {
			lastErr = fmt.Errorf("%w: got kind %#x", errHandshake, h.Kind)
			continue
		}
		return nil
	}
	return lastErr
}

// Send 发送一条 DATA, compress 请求压缩负载。
func (c *Client) Send(payload []byte, compress bool) error {
	return c.send(protocol.KindData, payload, compress)
}

// Recv 等待下一条 DATA 回显。CLOSE 返回 io.EOF, RESET 返回 ErrReset。
func (c *Client) Recv() ([]byte, error) {
	for {
		h, payload, err := c.recv()
		if err != nil {
			return nil, err
		}
		switch h.Kind {
		case protocol.KindData:
			return payload, nil
		case protocol.KindClose:
			return nil, io.EOF
		case protocol.KindReset:
			return nil, ErrReset
		}
		// 重复的 INIT 确认等, 跳过继续等
	}
}

// Close 尽力告知服务端后关闭 socket。
func (c *Client) Close() error {
	_ = c.send(protocol.KindClose, nil, false)
	return c.conn.Close()
}

func (c *Client) send(kind byte, payload []byte, compress bool) error {
	pkt := protocol.AppendPacket(nil, c.id, kind, payload, compress)
	_, err := c.conn.Write(pkt)
	return err
}

func (c *Client) recv() (protocol.Header, []byte, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return protocol.Header{}, nil, err
		}
		n, err := c.conn.Read(c.rb)
		if err != nil {
			return protocol.Header{}, nil, err
		}
		h, payload, err := protocol.ParsePacket(c.rb[:n])
		if err != nil {
			// 畸形或窜台的报文, 丢掉继续等
			continue
		}
		if h.ID != c.id {
			continue
		}
		return h, payload, nil
	}
}
