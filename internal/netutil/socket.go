package netutil

import (
	"net"

	"golang.org/x/sys/unix"
)

func SetNonblock(fd int, nonblock bool) error {
	return unix.SetNonblock(fd, nonblock)
}

func SetReusePort(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, v)
}

func SetReuseAddr(fd int, enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
}

func SetRecvBuf(fd int, n int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, n)
}
func SetSendBuf(fd int, n int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, n)
}

// ResolveUDPSockaddr 将监听地址解析为 bind 所需的 sockaddr 与地址族。
func ResolveUDPSockaddr(network, address string) (unix.Sockaddr, int, error) {
	if network == "" {
		network = "udp4"
	}
	fam := unix.AF_INET
	if network == "udp6" {
		fam = unix.AF_INET6
	}
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, 0, err
	}
	if fam == unix.AF_INET6 {
		var sa6 unix.SockaddrInet6
		if addr.IP != nil {
			copy(sa6.Addr[:], addr.IP.To16())
		}
		sa6.Port = addr.Port
		return &sa6, fam, nil
	}
	var sa4 unix.SockaddrInet4
	if addr.IP != nil {
		copy(sa4.Addr[:], addr.IP.To4())
	}
	sa4.Port = addr.Port
	return &sa4, fam, nil
}

// UDPAddrFromSockaddr 转换 recvfrom/getsockname 返回的 sockaddr。
// 未知类型返回 nil。
func UDPAddrFromSockaddr(sa unix.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	}
	return nil
}

// LocalUDPAddr 查询 fd 的绑定地址（用于 ":0" 随机端口）。
func LocalUDPAddr(fd int) (*net.UDPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return UDPAddrFromSockaddr(sa), nil
}
