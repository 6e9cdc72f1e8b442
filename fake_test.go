//go:build linux || darwin

package qio

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/qio/bufpool"
	"github.com/legamerdc/qio/poller"
)

// 脚本化替身, 只在测试 goroutine(即充当事件循环的那个)上使用。

var testPeer = &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}, Port: 4242}

var testPeerAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}

type inbound struct {
	data []byte
	from unix.Sockaddr
}

// fakeSocket 可控的 datagramSocket。blocked 时 Send 返回 0;
// allow > 0 时每次成功发送递减, 减到 0 自动转入 blocked。
type fakeSocket struct {
	recvQ   []inbound
	sent    [][]byte
	blocked bool
	allow   int
	sendErr error
	recvErr error
}

func (f *fakeSocket) Receive(p []byte) (int, unix.Sockaddr, error) {
	if f.recvErr != nil {
		err := f.recvErr
		f.recvErr = nil
		return 0, nil, err
	}
	if len(f.recvQ) == 0 {
		return 0, nil, nil
	}
	in := f.recvQ[0]
	f.recvQ = f.recvQ[1:]
	return copy(p, in.data), in.from, nil
}

func (f *fakeSocket) Send(p []byte, to unix.Sockaddr) (int, error) {
	if f.sendErr != nil {
		err := f.sendErr
		f.sendErr = nil
		return 0, err
	}
	if f.blocked {
		return 0, nil
	}
	f.sent = append(f.sent, append([]byte(nil), p...))
	if f.allow > 0 {
		f.allow--
		if f.allow == 0 {
			f.blocked = true
		}
	}
	return len(p), nil
}

func (f *fakeSocket) FD() poller.FD { return 42 }

func (f *fakeSocket) Close() error { return nil }

// fakeEngine 按脚本产包, 记录所有回调。
type fakeEngine struct {
	outQ       [][]byte
	feeds      [][]byte
	feedErr    error
	produceErr error
	next       time.Time
	produces   int
	timeouts   int
	closed     bool
	closes     int
}

func (e *fakeEngine) Feed(pkt []byte, peer *net.UDPAddr) error {
	e.feeds = append(e.feeds, append([]byte(nil), pkt...))
	return e.feedErr
}

func (e *fakeEngine) Produce(buf []byte) (int, error) {
	e.produces++
	if e.produceErr != nil {
		return 0, e.produceErr
	}
	if len(e.outQ) == 0 {
		return 0, nil
	}
	n := copy(buf, e.outQ[0])
	e.outQ = e.outQ[1:]
	return n, nil
}

func (e *fakeEngine) NextTimeout() time.Time { return e.next }
func (e *fakeEngine) OnTimeout()             { e.timeouts++ }
func (e *fakeEngine) IsClosed() bool         { return e.closed }
func (e *fakeEngine) Close() error {
	e.closes++
	return nil
}

type funcAcceptor struct {
	id     func([]byte) (ConnectionID, error)
	accept func(*net.UDPAddr, []byte, []byte) (Engine, int, error)
}

func (a *funcAcceptor) ConnectionID(pkt []byte) (ConnectionID, error) { return a.id(pkt) }

func (a *funcAcceptor) Accept(peer *net.UDPAddr, pkt []byte, resp []byte) (Engine, int, error) {
	return a.accept(peer, pkt, resp)
}

// prefixID 取前 4 字节当连接标识。
func prefixID(pkt []byte) (ConnectionID, error) {
	if len(pkt) < 4 {
		return "", io.ErrUnexpectedEOF
	}
	return ConnectionID(pkt[:4]), nil
}

type waitResult struct {
	r   poller.Ready
	err error
}

// fakePoller 的 Wait 从通道取脚本事件, Mod/Wake 留痕供断言。
type fakePoller struct {
	ch chan waitResult

	mu     sync.Mutex
	mods   [][2]bool
	modErr error
	wakes  int
}

func newFakePoller() *fakePoller {
	return &fakePoller{ch: make(chan waitResult, 16)}
}

func (p *fakePoller) Register(fd poller.FD, readable, writable bool) error { return nil }

func (p *fakePoller) Mod(fd poller.FD, readable, writable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modErr != nil {
		return p.modErr
	}
	p.mods = append(p.mods, [2]bool{readable, writable})
	return nil
}

func (p *fakePoller) Unregister(fd poller.FD) error { return nil }

func (p *fakePoller) Wait() (poller.Ready, error) {
	w := <-p.ch
	return w.r, w.err
}

func (p *fakePoller) Wake() error {
	p.mu.Lock()
	p.wakes++
	p.mu.Unlock()
	return nil
}

func (p *fakePoller) Close() error { return nil }

func (p *fakePoller) modLog() [][2]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]bool(nil), p.mods...)
}

func (p *fakePoller) wakeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wakes
}

// scriptCommand 执行 needRuns 次才完成, 在 log 里记名字。
type scriptCommand struct {
	name      string
	needRuns  int
	runs      int
	log       *[]string
	discarded bool
}

func (c *scriptCommand) execute() (bool, error) {
	c.runs++
	if c.log != nil {
		*c.log = append(*c.log, c.name)
	}
	return c.runs >= c.needRuns, nil
}

func (c *scriptCommand) discard() { c.discarded = true }

func newTestServer(sock datagramSocket, pl poller.Poller, acc Acceptor) *Server {
	cfg := DefaultConfig()
	cfg.Pool = new(bufpool.Pool)
	return &Server{cfg: cfg, acceptor: acc, pool: cfg.Pool, cmds: queue.New(), sock: sock, pl: pl}
}

func addSession(s *Server, id ConnectionID, eng Engine) *session {
	sess := newSession(id, eng, testPeer, testPeerAddr)
	s.sessions.Store(id, sess)
	return sess
}
