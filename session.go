//go:build linux || darwin

package qio

import (
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// session 为一条已接纳连接的运行时状态。
// 除 deadline 外只在事件循环 goroutine 上读写;
// deadline 还会被扫描 goroutine 读取, 走原子。
type session struct {
	id  ConnectionID
	eng Engine

	// 最近来源地址的两种表示, 同步更新
	peer     unix.Sockaddr // 发送路径
	peerAddr *net.UDPAddr  // 引擎边界

	deadline atomic.Int64 // UnixNano, 0 表示未设置
}

func newSession(id ConnectionID, eng Engine, peer unix.Sockaddr, peerAddr *net.UDPAddr) *session {
	return &session{id: id, eng: eng, peer: peer, peerAddr: peerAddr}
}

func (s *session) setPeer(peer unix.Sockaddr, peerAddr *net.UDPAddr) {
	s.peer = peer
	s.peerAddr = peerAddr
}

// setDeadline 在每次 Produce 之后被调用, 引擎返回零值即清除。
func (s *session) setDeadline(t time.Time) {
	if t.IsZero() {
		s.deadline.Store(0)
		return
	}
	s.deadline.Store(t.UnixNano())
}

func (s *session) timedOut(now time.Time) bool {
	d := s.deadline.Load()
	return d != 0 && d <= now.UnixNano()
}
