package codec

import (
	"encoding/binary"
	"strings"
)

type FourCC [4]byte

var (
	FourCC_H264 = FourCC{'a', 'v', 'c', '1'}
	FourCC_H265 = FourCC{'h', 'v', 'c', '1'}
)

func (f *FourCC) String() string {
	return string(f[:])
}

func (f *FourCC) Uint32() uint32 {
	return binary.BigEndian.Uint32(f[:])
}

// ParseFourCC 从配置中的编码名称得到 FourCC
func ParseFourCC(name string) (f FourCC, ok bool) {
	switch strings.ToLower(name) {
	case "h264", "avc", "avc1":
		return FourCC_H264, true
	case "h265", "hevc", "hvc1":
		return FourCC_H265, true
	}
	return
}

type ICodecCtx interface {
	FourCC() FourCC
	GetInfo() string
}
