package codec

import (
	"bytes"
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"

	"m7s.live/framering/pkg/util"
)

// SplitAnnexB 以起始码分割裸码流，返回的 NALU 引用原始内存
func SplitAnnexB(frame []byte) ([][]byte, error) {
	return h264.AnnexBUnmarshal(frame)
}

// ParamSets 缓存最近的参数集，用于给不带参数集的关键帧补上前缀
type ParamSets struct {
	FourCC        FourCC
	VPS, SPS, PPS []byte
	ctx           ICodecCtx
	prefix        util.Buffer
}

func NewParamSets(fourCC FourCC) *ParamSets {
	return &ParamSets{FourCC: fourCC}
}

func (p *ParamSets) kind(nalu []byte) (vps, sps, pps bool) {
	if p.FourCC == FourCC_H265 {
		switch ParseH265NALUType(nalu[0]) {
		case NAL_UNIT_VPS:
			vps = true
		case NAL_UNIT_SPS:
			sps = true
		case NAL_UNIT_PPS:
			pps = true
		}
		return
	}
	switch ParseH264NALUType(nalu[0]) {
	case NALU_SPS:
		sps = true
	case NALU_PPS:
		pps = true
	}
	return
}

// Update 记录访问单元中的参数集，返回参数集是否发生变化
func (p *ParamSets) Update(nalus [][]byte) (changed bool) {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		var target *[]byte
		switch vps, sps, pps := p.kind(nalu); {
		case vps:
			target = &p.VPS
		case sps:
			target = &p.SPS
		case pps:
			target = &p.PPS
		default:
			continue
		}
		if !bytes.Equal(*target, nalu) {
			*target = bytes.Clone(nalu)
			changed = true
		}
	}
	if changed {
		p.prefix.Reset()
		p.ctx = nil
		if p.Ready() {
			for _, ps := range [][]byte{p.VPS, p.SPS, p.PPS} {
				if len(ps) > 0 {
					p.prefix.Write(NALU_Delimiter2)
					p.prefix.Write(ps)
				}
			}
		}
	}
	return
}

func (p *ParamSets) Ready() bool {
	if p.FourCC == FourCC_H265 && len(p.VPS) == 0 {
		return false
	}
	return len(p.SPS) > 0 && len(p.PPS) > 0
}

// Carried 访问单元自身是否已经带有 SPS
func (p *ParamSets) Carried(nalus [][]byte) bool {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if _, sps, _ := p.kind(nalu); sps {
			return true
		}
	}
	return false
}

// Prefix Annex-B 格式的参数集，未收齐时为 nil
func (p *ParamSets) Prefix() []byte {
	if p.prefix.Len() == 0 {
		return nil
	}
	return p.prefix
}

func (p *ParamSets) IsKeyFrame(nalus [][]byte) bool {
	if p.FourCC == FourCC_H265 {
		return H265IsKeyFrame(nalus)
	}
	return H264IsKeyFrame(nalus)
}

// ParseCtx 从参数集解析出编码信息
func (p *ParamSets) ParseCtx() (ctx ICodecCtx, err error) {
	if p.ctx != nil {
		return p.ctx, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("parse %s parameter sets: %v", p.FourCC.String(), r)
		}
	}()
	switch p.FourCC {
	case FourCC_H265:
		ctx, err = NewH265Ctx(p.VPS, p.SPS, p.PPS)
	default:
		ctx, err = NewH264Ctx(p.SPS, p.PPS)
	}
	if err == nil {
		p.ctx = ctx
	}
	return
}
