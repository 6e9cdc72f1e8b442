//go:build linux || darwin

package qio

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/qio/internal/netutil"
)

// run 为事件循环主体, 独占 socket/队列/会话表的写权。
// 每轮最多收一个报文, 把队列尽量排空, 结尾重算兴趣集:
// 读常开, 写只在队列非空时打开。
func (s *Server) run() error {
	defer s.drainCommands()
	bo := &backoff.Backoff{Min: time.Millisecond, Max: time.Second, Factor: 2, Jitter: true}
	for {
		r, err := s.pl.Wait()
		if s.stopping.Load() {
			return nil
		}
		if err != nil {
			// 瞬时失败退避重试, 不让循环静默死掉
			log.Printf("qio: poll wait: %v", err)
			time.Sleep(bo.Duration())
			continue
		}
		bo.Reset()
		if !r.Readable && !r.Writable {
			// 纯唤醒, 没有 IO 事件, 做超时扫描
			s.sweepOnce(time.Now())
		}
		if r.Readable {
			s.onReadable()
		}
		if r.Writable {
			s.onWritable()
		}
		if err := s.pl.Mod(s.sock.FD(), true, s.cmds.Length() > 0); err != nil {
			// 兴趣集更新失败意味着 socket 已不可用
			return fmt.Errorf("qio: update socket interest: %w", err)
		}
	}
}

// onReadable 收取一个报文并按连接标识路由。
// 水平触发, 还有剩余报文下轮会再次上报可读。
func (s *Server) onReadable() {
	buf := s.pool.Acquire(s.cfg.MaxDatagramSize)
	defer s.pool.Release(buf)
	n, from, err := s.sock.Receive(buf.B)
	if err != nil {
		log.Printf("qio: receive: %v", err)
		return
	}
	if from == nil {
		return
	}
	pkt := buf.B[:n]
	id, err := s.acceptor.ConnectionID(pkt)
	if err != nil {
		// 解不出标识, 静默丢弃
		return
	}
	v, ok := s.sessions.Load(id)
	if !ok {
		s.acceptNew(id, from, pkt)
		return
	}
	sess := v.(*session)
	sess.setPeer(from, netutil.UDPAddrFromSockaddr(from))
	if err := sess.eng.Feed(pkt, sess.peerAddr); err != nil {
		// 引擎可能还有收尾报文要发, 记日志后照常给它产包机会
		log.Printf("qio: feed: %v", err)
	}
	s.attempt(newWriteCommand(s.pool, s.sock, sess, s.cfg.MaxDatagramSize))
}

// acceptNew 处理未知标识的报文, 四种结局见 Acceptor.Accept。
func (s *Server) acceptNew(id ConnectionID, from unix.Sockaddr, pkt []byte) {
	peerAddr := netutil.UDPAddrFromSockaddr(from)
	resp := s.pool.Acquire(s.cfg.MaxDatagramSize)
	eng, n, err := s.acceptor.Accept(peerAddr, pkt, resp.B)
	if err != nil {
		s.pool.Release(resp)
		log.Printf("qio: accept %v: %v", peerAddr, err)
		return
	}
	if eng != nil {
		s.pool.Release(resp)
		// 标识可能是收包缓冲的视图, 入表前复制
		sess := newSession(ConnectionID(strings.Clone(string(id))), eng, from, peerAddr)
		s.sessions.Store(sess.id, sess)
		s.attempt(newWriteCommand(s.pool, s.sock, sess, s.cfg.MaxDatagramSize))
		return
	}
	if n > 0 {
		// 协商应答原样发回, 不建会话, resp 归命令所有
		s.attempt(newRawWriteCommand(s.pool, s.sock, from, resp, n))
		return
	}
	s.pool.Release(resp)
}

// onWritable 按 FIFO 排队列, 遇到发不动的命令放回队尾并停止,
// socket 已满, 后面的命令同样发不出去。
func (s *Server) onWritable() {
	for s.cmds.Length() > 0 {
		c := s.cmds.Remove().(command)
		done, err := c.execute()
		if err != nil {
			log.Printf("qio: command: %v", err)
			continue
		}
		if !done {
			s.cmds.Add(c)
			return
		}
	}
}

// attempt 立即执行命令, 未完成的进队列等可写事件。
func (s *Server) attempt(c command) {
	done, err := c.execute()
	if err != nil {
		log.Printf("qio: command: %v", err)
		return
	}
	if !done {
		s.cmds.Add(c)
	}
}

// sweepOnce 遍历会话处理空闲超时。已关闭的会话先出表再做
// 收尾命令, 排干剩余报文后终结引擎; 未关闭的只通知超时。
func (s *Server) sweepOnce(now time.Time) {
	s.sessions.Range(func(k, v any) bool {
		sess := v.(*session)
		if !sess.timedOut(now) {
			return true
		}
		closing := sess.eng.IsClosed()
		if closing {
			s.sessions.Delete(k)
		}
		s.attempt(newTimeoutCommand(s.pool, s.sock, sess, s.cfg.MaxDatagramSize, closing))
		return true
	})
}

// drainCommands 停机时释放队列里攒下的缓冲。
func (s *Server) drainCommands() {
	for s.cmds.Length() > 0 {
		s.cmds.Remove().(command).discard()
	}
}
