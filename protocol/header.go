package protocol

import (
	"errors"
	"io"

	"github.com/lithdew/bytesutil"
)

// 报文布局 (一个 UDP 报文即一个完整包):
//   ID    uint32 BE  连接标识, 客户端分配, 非零
//   Flags byte       低 4 位为类型, bit7 为压缩位
//   Payload          其余字节, 压缩位置位时为 zstd 压缩体

const (
	KindInit  byte = 0x01 // 建连, 服务端回 KindInit 确认
	KindData  byte = 0x02 // 数据, 服务端回显
	KindClose byte = 0x03 // 正常关闭
	KindReset byte = 0x04 // 异常终止, 无应答

	flagCompressed byte = 0x80
	kindMask       byte = 0x0F
)

// HeaderSize 为报文头字节数。
const HeaderSize = 5

// MaxPayload 为解压后负载上限, 超限报文按畸形处理。
const MaxPayload = 1 << 20

var (
	ErrZeroConnID  = errors.New("protocol: zero connection id")
	ErrUnknownKind = errors.New("protocol: unknown packet kind")
)

type Header struct {
	ID         uint32
	Kind       byte
	Compressed bool
}

func (h Header) AppendTo(dst []byte) []byte {
	dst = bytesutil.AppendUint32BE(dst, h.ID)
	fl := h.Kind & kindMask
	if h.Compressed {
		fl |= flagCompressed
	}
	return append(dst, fl)
}

// UnmarshalHeader 解出报文头, 返回剩余的负载字节。
func UnmarshalHeader(buf []byte) (Header, []byte, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, nil, io.ErrUnexpectedEOF
	}
	h.ID, buf = bytesutil.Uint32BE(buf[:4]), buf[4:]
	fl := buf[0]
	buf = buf[1:]
	h.Kind = fl & kindMask
	h.Compressed = fl&flagCompressed != 0
	if h.ID == 0 {
		return h, nil, ErrZeroConnID
	}
	switch h.Kind {
	case KindInit, KindData, KindClose, KindReset:
	default:
		return h, nil, ErrUnknownKind
	}
	return h, buf, nil
}
