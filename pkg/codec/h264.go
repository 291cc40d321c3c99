package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/deepch/vdk/codec/h264parser"
)

type H264NALUType byte

func ParseH264NALUType(b byte) H264NALUType {
	return H264NALUType(b & 0x1F)
}

const (
	// NALU Type
	NALU_Unspecified           H264NALUType = iota
	NALU_Non_IDR_Picture                    // 1
	NALU_Data_Partition_A                   // 2
	NALU_Data_Partition_B                   // 3
	NALU_Data_Partition_C                   // 4
	NALU_IDR_Picture                        // 5
	NALU_SEI                                // 6
	NALU_SPS                                // 7
	NALU_PPS                                // 8
	NALU_Access_Unit_Delimiter              // 9
)

var NALU_Delimiter2 = []byte{0x00, 0x00, 0x00, 0x01}

// H264IsKeyFrame 访问单元中是否有 IDR
func H264IsKeyFrame(nalus [][]byte) bool {
	return h264.IDRPresent(nalus)
}

type H264Ctx struct {
	h264parser.CodecData
}

func NewH264Ctx(sps, pps []byte) (ctx *H264Ctx, err error) {
	ctx = &H264Ctx{}
	ctx.CodecData, err = h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
	return
}

func (*H264Ctx) FourCC() FourCC {
	return FourCC_H264
}

func (ctx *H264Ctx) GetInfo() string {
	return fmt.Sprintf("fps: %d, resolution: %s", ctx.FPS(), ctx.Resolution())
}
