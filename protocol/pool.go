package protocol

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		return enc
	}}
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayload))
		return dec
	}}
)

func compressPayload(p []byte) []byte {
	zw := encoderPool.Get().(*zstd.Encoder)
	out := zw.EncodeAll(p, nil)
	encoderPool.Put(zw)
	return out
}

func decompressPayload(p []byte) ([]byte, error) {
	dz := decoderPool.Get().(*zstd.Decoder)
	out, err := dz.DecodeAll(p, nil)
	decoderPool.Put(dz)
	return out, err
}
