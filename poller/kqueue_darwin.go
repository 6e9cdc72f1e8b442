//go:build darwin

package poller

import (
	"runtime"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq  int
	wfd int // 写端，用于唤醒
	rfd int // 读端，注册到 kqueue
	sfd int
	wOn bool // 写 filter 当前是否挂载
}

func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	// 使用管道作为唤醒
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}
	rfd, wfd := p[0], p[1]
	_ = unix.SetNonblock(rfd, true)
	_ = unix.SetNonblock(wfd, true)
	kev := unix.Kevent_t{
		Ident:  uint64(rfd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err = unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(rfd)
		unix.Close(wfd)
		unix.Close(kq)
		return nil, err
	}
	return &kqueuePoller{kq: kq, wfd: wfd, rfd: rfd, sfd: -1}, nil
}

// kqueue 的读写为独立 filter；写 filter 按需挂载/摘除，读 filter 常驻。
// 记录 wOn 避免对不存在的 filter 执行 EV_DELETE。
func (p *kqueuePoller) apply(fd FD, readable, writable bool) error {
	var changes []unix.Kevent_t
	if readable {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	}
	if writable != p.wOn {
		fl := uint16(unix.EV_ADD)
		if !writable {
			fl = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: fl})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return err
	}
	p.wOn = writable
	return nil
}

func (p *kqueuePoller) Register(fd FD, readable, writable bool) error {
	p.sfd = fd
	p.wOn = false
	return p.apply(fd, readable, writable)
}

func (p *kqueuePoller) Mod(fd FD, readable, writable bool) error {
	return p.apply(fd, readable, writable)
}

func (p *kqueuePoller) Unregister(fd FD) error {
	changes := []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}}
	if p.wOn {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	p.wOn = false
	if fd == p.sfd {
		p.sfd = -1
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Wake() error {
	var b [1]byte
	b[0] = 1
	_, err := unix.Write(p.wfd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *kqueuePoller) Close() error {
	unix.Close(p.rfd)
	unix.Close(p.wfd)
	return unix.Close(p.kq)
}

func (p *kqueuePoller) Wait() (Ready, error) {
	defer runtime.KeepAlive(p)
	var events [8]unix.Kevent_t
	var pipeBuf [16]byte
	for {
		n, err := unix.Kevent(p.kq, nil, events[:], nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return Ready{}, err
		}
		var r Ready
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Ident)
			if fd == p.rfd {
				for {
					_, rerr := unix.Read(p.rfd, pipeBuf[:])
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
			if ev.Filter == unix.EVFILT_READ {
				r.Readable = true
			}
			if ev.Filter == unix.EVFILT_WRITE {
				r.Writable = true
			}
		}
		return r, nil
	}
}
