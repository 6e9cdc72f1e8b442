package qio

import "time"

// sweeper 按固定周期触发超时扫描。只负责叫醒事件循环,
// 会话的遍历与删改都发生在循环 goroutine 上。
type sweeper struct {
	interval time.Duration
	stopCh   chan struct{}
}

func newSweeper(interval time.Duration) *sweeper {
	return &sweeper{interval: interval, stopCh: make(chan struct{})}
}

func (sw *sweeper) run(onTick func()) {
	tk := time.NewTicker(sw.interval)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			onTick()
		case <-sw.stopCh:
			return
		}
	}
}

func (sw *sweeper) stop() { close(sw.stopCh) }
