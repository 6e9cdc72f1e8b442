//go:build linux || darwin

package qio

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/legamerdc/qio/internal/netutil"
	"github.com/legamerdc/qio/poller"
)

// datagramSocket 抽象非阻塞 UDP socket, would-block 统一归一化:
// Receive 返回 nil 地址表示暂无报文, Send 返回 0 表示发不出去。
type datagramSocket interface {
	Receive(p []byte) (int, unix.Sockaddr, error)
	Send(p []byte, to unix.Sockaddr) (int, error)
	FD() poller.FD
	Close() error
}

type udpSocket struct {
	fd int
}

func openSocket(cfg *Config) (*udpSocket, error) {
	sa, fam, err := netutil.ResolveUDPSockaddr(cfg.Network, cfg.Address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(fam, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, err
	}
	_ = netutil.SetReuseAddr(fd, true)
	if cfg.ReusePort {
		_ = netutil.SetReusePort(fd, true)
	}
	if cfg.RecvBufferSize > 0 {
		_ = netutil.SetRecvBuf(fd, cfg.RecvBufferSize)
	}
	if cfg.SendBufferSize > 0 {
		_ = netutil.SetSendBuf(fd, cfg.SendBufferSize)
	}
	if err := netutil.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &udpSocket{fd: fd}, nil
}

// Receive 收取一个报文。EINTR 按暂无报文处理, 水平触发下会再次上报。
func (s *udpSocket) Receive(p []byte) (int, unix.Sockaddr, error) {
	n, from, err := unix.Recvfrom(s.fd, p, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return n, from, nil
}

// Send 发送整报文。UDP 不存在部分发送, 返回 0 仅表示 would-block。
func (s *udpSocket) Send(p []byte, to unix.Sockaddr) (int, error) {
	err := unix.Sendto(s.fd, p, 0, to)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return len(p), nil
}

func (s *udpSocket) FD() poller.FD { return s.fd }

func (s *udpSocket) Close() error { return unix.Close(s.fd) }

func (s *udpSocket) localAddr() (*net.UDPAddr, error) {
	return netutil.LocalUDPAddr(s.fd)
}
