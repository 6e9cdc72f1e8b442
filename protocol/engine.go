package protocol

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/lithdew/bytesutil"

	"github.com/legamerdc/qio"
)

// maxEchoPayload 保证回显报文装得进事件循环的报文缓冲。
const maxEchoPayload = 64<<10 - HeaderSize

// DefaultIdleTimeout 为未配置时的连接空闲窗口。
const DefaultIdleTimeout = 30 * time.Second

var (
	errEchoTooLarge = errors.New("protocol: payload exceeds echo limit")
	errShortBuffer  = errors.New("protocol: reply exceeds datagram buffer")
)

// EchoAcceptor 按演示协议接纳连接: INIT 建连并配回显引擎,
// 其余未知标识的报文回 RESET(RESET 自身除外, 避免互相打乒乓)。
type EchoAcceptor struct {
	IdleTimeout time.Duration
}

func NewEchoAcceptor(idle time.Duration) *EchoAcceptor {
	return &EchoAcceptor{IdleTimeout: idle}
}

func (a *EchoAcceptor) ConnectionID(pkt []byte) (qio.ConnectionID, error) {
	if len(pkt) < HeaderSize {
		return "", io.ErrUnexpectedEOF
	}
	if bytesutil.Uint32BE(pkt[:4]) == 0 {
		return "", ErrZeroConnID
	}
	return qio.ConnectionID(pkt[:4]), nil
}

func (a *EchoAcceptor) Accept(peer *net.UDPAddr, pkt []byte, resp []byte) (qio.Engine, int, error) {
	h, _, err := ParsePacket(pkt)
	if err != nil {
		return nil, 0, err
	}
	switch h.Kind {
	case KindInit:
		eng := newEchoEngine(h.ID, a.IdleTimeout)
		eng.acceptInit()
		return eng, 0, nil
	case KindReset:
		// 对不存在连接的 RESET 静默丢弃
		return nil, 0, nil
	default:
		// 未建连就来数据, 回 RESET 让对端重置
		out := AppendPacket(resp[:0], h.ID, KindReset, nil, false)
		return nil, len(out), nil
	}
}

// echoEngine 为演示引擎: 回显 DATA, 应答 INIT/CLOSE, 空闲即关。
// 只在事件循环 goroutine 上被调用, 无锁。
type echoEngine struct {
	id       uint32
	idle     time.Duration
	out      [][]byte // 已编码的待发报文
	deadline time.Time
	closed   bool
}

func newEchoEngine(id uint32, idle time.Duration) *echoEngine {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &echoEngine{id: id, idle: idle}
}

func (e *echoEngine) acceptInit() {
	e.push(AppendPacket(nil, e.id, KindInit, nil, false))
	e.touch()
}

func (e *echoEngine) push(pkt []byte) { e.out = append(e.out, pkt) }

func (e *echoEngine) touch() { e.deadline = time.Now().Add(e.idle) }

// shutdown 把 deadline 拨到当下, 让下一轮扫描把会话收走。
func (e *echoEngine) shutdown() {
	e.closed = true
	e.deadline = time.Now()
}

func (e *echoEngine) Feed(pkt []byte, peer *net.UDPAddr) error {
	if e.closed {
		return nil
	}
	h, payload, err := ParsePacket(pkt)
	if err != nil {
		return err
	}
	switch h.Kind {
	case KindInit:
		// 重复 INIT, 再确认一次
		e.push(AppendPacket(nil, e.id, KindInit, nil, false))
	case KindData:
		if len(payload) > maxEchoPayload {
			return errEchoTooLarge
		}
		// 回显沿用来包的压缩选择, AppendPacket 会复制负载
		e.push(AppendPacket(nil, e.id, KindData, payload, h.Compressed))
	case KindClose:
		e.push(AppendPacket(nil, e.id, KindClose, nil, false))
		e.shutdown()
		return nil
	case KindReset:
		e.out = nil
		e.shutdown()
		return nil
	}
	e.touch()
	return nil
}

func (e *echoEngine) Produce(buf []byte) (int, error) {
	if len(e.out) == 0 {
		return 0, nil
	}
	pkt := e.out[0]
	e.out = e.out[1:]
	if len(pkt) > len(buf) {
		return 0, errShortBuffer
	}
	return copy(buf, pkt), nil
}

func (e *echoEngine) NextTimeout() time.Time { return e.deadline }

func (e *echoEngine) OnTimeout() {
	if e.closed {
		return
	}
	// 空闲超时: 送一个 CLOSE 告别再进入关闭
	e.push(AppendPacket(nil, e.id, KindClose, nil, false))
	e.shutdown()
}

func (e *echoEngine) IsClosed() bool { return e.closed }

func (e *echoEngine) Close() error {
	e.out = nil
	e.closed = true
	return nil
}
