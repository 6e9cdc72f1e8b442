package qio

import (
	"time"

	"github.com/legamerdc/qio/bufpool"
)

// Config 为服务端配置
type Config struct {
	Network         string        // udp4 / udp6
	Address         string        // 监听地址, 如 ":8443"
	ReusePort       bool          // SO_REUSEPORT
	RecvBufferSize  int           // SO_RCVBUF, 0 用系统默认
	SendBufferSize  int           // SO_SNDBUF, 0 用系统默认
	MaxDatagramSize int           // 单报文缓冲大小
	SweepInterval   time.Duration // 超时扫描周期
	Pool            *bufpool.Pool // 报文缓冲池, nil 则内部新建
}

// DefaultConfig 提供一组可工作的默认值
func DefaultConfig() Config {
	return Config{
		Network:         "udp4",
		Address:         ":0",
		MaxDatagramSize: 64 << 10, // 64 KiB, 覆盖 UDP 报文上限
		SweepInterval:   100 * time.Millisecond,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Network == "" {
		out.Network = "udp4"
	}
	if out.Address == "" {
		out.Address = ":0"
	}
	if out.MaxDatagramSize <= 0 {
		out.MaxDatagramSize = 64 << 10
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = 100 * time.Millisecond
	}
	if out.Pool == nil {
		out.Pool = new(bufpool.Pool)
	}
	return out
}
