//go:build !linux && !darwin

package qio

import (
	"context"
	"net"
)

// 其他平台仅保证编译通过, 事件循环依赖 epoll/kqueue。

type Server struct{}

func Start(cfg Config, acceptor Acceptor) (*Server, error) {
	if acceptor == nil {
		return nil, ErrInvalidArgument
	}
	return nil, ErrPlatformNotSupported
}

func (s *Server) Stop(ctx context.Context) error { return ErrPlatformNotSupported }

func (s *Server) LocalAddr() *net.UDPAddr { return nil }
