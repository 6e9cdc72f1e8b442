package protocol

// AppendPacket 追加一个完整报文。compress 申请压缩负载,
// 压不小时回退明文, 压缩位只在真正压缩时置位。
func AppendPacket(dst []byte, id uint32, kind byte, payload []byte, compress bool) []byte {
	body := payload
	compressed := false
	if compress && len(payload) > 0 {
		if z := compressPayload(payload); len(z) < len(payload) {
			body = z
			compressed = true
		}
	}
	dst = Header{ID: id, Kind: kind, Compressed: compressed}.AppendTo(dst)
	return append(dst, body...)
}

// ParsePacket 解析一个完整报文并按需解压负载。
// 返回的负载在未压缩时引用 buf, 要保留必须复制。
func ParsePacket(buf []byte) (Header, []byte, error) {
	h, payload, err := UnmarshalHeader(buf)
	if err != nil {
		return h, nil, err
	}
	if h.Compressed {
		out, derr := decompressPayload(payload)
		if derr != nil {
			return h, nil, derr
		}
		payload = out
	}
	return h, payload, nil
}
