package poller

// FD 表示文件描述符。
type FD = int

// Ready 描述一次就绪等待的结果。
// Woken 为 true 表示本次返回由 Wake 触发；三者全假不会出现。
type Ready struct {
	Readable bool
	Writable bool
	Woken    bool
}

// Poller 对单个数据报 socket 提供注册/逐次等待/唤醒。
// 注册一次后用 Mod 调整兴趣集，避免重复注册在多路复用器中累积。
// Wait 仅由反应器 goroutine 调用；Wake 可从任意 goroutine 调用。
type Poller interface {
	Register(fd FD, readable, writable bool) error
	Mod(fd FD, readable, writable bool) error
	Unregister(fd FD) error
	Wait() (Ready, error)
	Wake() error
	Close() error
}
