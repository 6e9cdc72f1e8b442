package qio

import (
	"net"
	"time"
)

// ConnectionID 为报文自带的连接标识, 由 Acceptor 从报文中解出。
// 查表允许基于收包缓冲的零拷贝视图, 入表前事件循环会复制一份。
type ConnectionID string

// Acceptor 解析连接标识并决定是否接纳新连接。
// 方法只在事件循环 goroutine 上被调用。
type Acceptor interface {
	// ConnectionID 从报文解出连接标识, 解不出返回错误, 该报文被静默丢弃。
	ConnectionID(pkt []byte) (ConnectionID, error)

	// Accept 处理未知标识的报文。四种结果:
	//   (eng, 0, nil)   接纳, eng 接管该连接
	//   (nil, n>0, nil) 拒纳但需应答, resp[:n] 原样发回
	//   (nil, 0, err)   拒纳, 错误记日志
	//   (nil, 0, nil)   静默拒纳
	Accept(peer *net.UDPAddr, pkt []byte, resp []byte) (Engine, int, error)
}

// Engine 为单条连接的传输引擎, 握手/加解密/重传都发生在其内部,
// 对事件循环只暴露喂包/产包/超时三类入口。
// 方法只在事件循环 goroutine 上被调用, 实现无需加锁。
type Engine interface {
	// Feed 喂入一个入站报文。pkt 只在调用期间有效, 要保留必须复制。
	Feed(pkt []byte, peer *net.UDPAddr) error

	// Produce 向 buf 填充下一个待发报文, 返回 0 表示当前无可发数据。
	Produce(buf []byte) (int, error)

	// NextTimeout 返回下一次空闲超时时刻, 零值表示无超时。
	NextTimeout() time.Time

	// OnTimeout 空闲超时通知, 每次超时最多收到一次。
	OnTimeout()

	// IsClosed 引擎是否已终结。
	IsClosed() bool

	// Close 释放引擎资源。
	Close() error
}
