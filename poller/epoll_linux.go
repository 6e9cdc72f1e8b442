//go:build linux

package poller

import (
	"runtime"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	efd int
	wfd int // eventfd for wakeup
	sfd int // 数据 socket
}

func New() (Poller, error) {
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(efd)
		return nil, err
	}
	p := &epollPoller{efd: efd, wfd: wfd, sfd: -1}
	// 注册 wakeup fd（边缘触发，Wait 中清空）
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(wfd)}
	if err := unix.EpollCtl(efd, unix.EPOLL_CTL_ADD, wfd, ev); err != nil {
		unix.Close(wfd)
		unix.Close(efd)
		return nil, err
	}
	return p, nil
}

// 数据 socket 使用水平触发：每次就绪只消费一个数据报，剩余的下轮继续上报。
func interest(readable, writable bool) uint32 {
	var flag uint32
	if readable {
		flag |= unix.EPOLLIN
	}
	if writable {
		flag |= unix.EPOLLOUT
	}
	return flag
}

func (p *epollPoller) Register(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interest(readable, writable), Fd: int32(fd)}
	if err := unix.EpollCtl(p.efd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.sfd = fd
	return nil
}

func (p *epollPoller) Mod(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interest(readable, writable), Fd: int32(fd)}
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Unregister(fd FD) error {
	if fd == p.sfd {
		p.sfd = -1
	}
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wfd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *epollPoller) Close() error {
	unix.Close(p.wfd)
	return unix.Close(p.efd)
}

func (p *epollPoller) Wait() (Ready, error) {
	defer runtime.KeepAlive(p)
	var events [8]unix.EpollEvent
	var efdBuf [8]byte
	for {
		n, err := unix.EpollWait(p.efd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return Ready{}, err
		}
		var r Ready
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == p.wfd {
				// 清空 eventfd
				for {
					_, rerr := unix.Read(p.wfd, efdBuf[:])
					if rerr == unix.EAGAIN {
						break
					}
					if rerr != nil {
						return Ready{}, rerr
					}
				}
				r.Woken = true
				continue
			}
			if fd != p.sfd {
				continue
			}
			// ERR/HUP 并入可读，由 recvfrom 取出具体错误
			if (ev.Events & (unix.EPOLLIN | unix.EPOLLERR | unix.EPOLLHUP)) != 0 {
				r.Readable = true
			}
			if (ev.Events & unix.EPOLLOUT) != 0 {
				r.Writable = true
			}
		}
		return r, nil
	}
}
