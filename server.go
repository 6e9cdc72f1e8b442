//go:build linux || darwin

package qio

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/legamerdc/qio/bufpool"
	"github.com/legamerdc/qio/poller"
)

// Server 把多条连接复用在一个 UDP socket 上:
// 一个事件循环 goroutine 独占 socket 读写、命令队列和会话表变更,
// 外加一个只读的超时扫描 goroutine。
type Server struct {
	cfg      Config
	acceptor Acceptor

	pl   poller.Poller
	sock datagramSocket
	pool *bufpool.Pool

	cmds     *queue.Queue // 待重试命令, 只在事件循环上读写
	sessions sync.Map     // ConnectionID -> *session

	sw        *sweeper
	stopping  atomic.Bool
	closeOnce sync.Once
	runErr    error // 循环退出原因, wg.Wait 之后读
	wg        sync.WaitGroup
	laddr     *net.UDPAddr
}

// Start 绑定 socket 并启动事件循环与超时扫描。
func Start(cfg Config, acceptor Acceptor) (*Server, error) {
	if acceptor == nil {
		return nil, ErrInvalidArgument
	}
	cfg = cfg.withDefaults()
	s := &Server{cfg: cfg, acceptor: acceptor, pool: cfg.Pool, cmds: queue.New()}

	sock, err := openSocket(&cfg)
	if err != nil {
		return nil, err
	}
	laddr, err := sock.localAddr()
	if err != nil {
		sock.Close()
		return nil, err
	}
	pl, err := poller.New()
	if err != nil {
		sock.Close()
		return nil, err
	}
	if err := pl.Register(sock.FD(), true, false); err != nil {
		pl.Close()
		sock.Close()
		return nil, err
	}
	s.sock, s.laddr, s.pl = sock, laddr, pl
	s.sw = newSweeper(cfg.SweepInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.run(); err != nil {
			log.Printf("qio: event loop exited: %v", err)
			s.runErr = err
		}
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sw.run(s.sweepTick)
	}()
	return s, nil
}

// Stop 叫停事件循环并等待退出, ctx 限定等待时长。
// 返回循环的致命错误(若有)。
func (s *Server) Stop(ctx context.Context) error {
	if s.stopping.CompareAndSwap(false, true) {
		s.sw.stop()
		_ = s.pl.Wake()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	s.closeOnce.Do(func() {
		_ = s.pl.Close()
		_ = s.sock.Close()
	})
	return s.runErr
}

// LocalAddr 返回实际绑定地址, Address 填 ":0" 时从这里拿端口。
func (s *Server) LocalAddr() *net.UDPAddr { return s.laddr }

// sweepTick 在扫描 goroutine 上运行, 只读 deadline,
// 发现到期会话就叫醒事件循环, 删改都留给循环自己做。
func (s *Server) sweepTick() {
	now := time.Now()
	expired := false
	s.sessions.Range(func(_, v any) bool {
		if v.(*session).timedOut(now) {
			expired = true
			return false
		}
		return true
	})
	if expired {
		_ = s.pl.Wake()
	}
}
