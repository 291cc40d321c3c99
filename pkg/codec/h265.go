package codec

import (
	"fmt"

	"github.com/deepch/vdk/codec/h265parser"
)

type H265NALUType byte

func ParseH265NALUType(b byte) H265NALUType {
	return H265NALUType(b & 0x7E >> 1)
}

const (
	NAL_UNIT_CODED_SLICE_TRAIL_R    H265NALUType = 1
	NAL_UNIT_CODED_SLICE_BLA_W_LP   H265NALUType = 16
	NAL_UNIT_CODED_SLICE_IDR_W_RADL H265NALUType = 19
	NAL_UNIT_CODED_SLICE_CRA        H265NALUType = 21
	NAL_UNIT_RESERVED_IRAP_23       H265NALUType = 23
	NAL_UNIT_VPS                    H265NALUType = 32
	NAL_UNIT_SPS                    H265NALUType = 33
	NAL_UNIT_PPS                    H265NALUType = 34
	NAL_UNIT_ACCESS_UNIT_DELIMITER  H265NALUType = 35
)

// IsIRAP 随机访问点（BLA/IDR/CRA）
func (t H265NALUType) IsIRAP() bool {
	return t >= NAL_UNIT_CODED_SLICE_BLA_W_LP && t <= NAL_UNIT_RESERVED_IRAP_23
}

func H265IsKeyFrame(nalus [][]byte) bool {
	for _, nalu := range nalus {
		if len(nalu) > 0 && ParseH265NALUType(nalu[0]).IsIRAP() {
			return true
		}
	}
	return false
}

type H265Ctx struct {
	h265parser.CodecData
}

func NewH265Ctx(vps, sps, pps []byte) (ctx *H265Ctx, err error) {
	ctx = &H265Ctx{}
	ctx.CodecData, err = h265parser.NewCodecDataFromVPSAndSPSAndPPS(vps, sps, pps)
	return
}

func (*H265Ctx) FourCC() FourCC {
	return FourCC_H265
}

func (ctx *H265Ctx) GetInfo() string {
	return fmt.Sprintf("fps: %d, resolution: %s", ctx.FPS(), ctx.Resolution())
}
