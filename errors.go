package qio

import "errors"

var (
	// ErrPlatformNotSupported 平台缺少 epoll/kqueue 支持
	ErrPlatformNotSupported = errors.New("qio: platform not supported (requires epoll or kqueue)")

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("qio: invalid argument")
)
