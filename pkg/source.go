package pkg

import (
	"context"
	"time"

	"m7s.live/framering/pkg/codec"
	"m7s.live/framering/pkg/config"
)

// 1920x1080 的参数集
var (
	h264SPS = []byte{
		0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
		0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
		0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9, 0x20,
	}
	h264PPS = []byte{0x68, 0xce, 0x3c, 0x80}
	h265VPS = []byte{
		0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60,
		0x00, 0x00, 0x03, 0x00, 0x90, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x03, 0x00, 0x78, 0x99, 0x98, 0x09,
	}
	h265SPS = []byte{
		0x42, 0x01, 0x01, 0x01, 0x60, 0x00, 0x00, 0x03,
		0x00, 0x90, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03,
		0x00, 0x78, 0xa0, 0x03, 0xc0, 0x80, 0x10, 0xe5,
		0x96, 0x66, 0x69, 0x24, 0xca, 0xe0, 0x10, 0x00,
		0x00, 0x03, 0x00, 0x10, 0x00, 0x00, 0x03, 0x01,
		0xe0, 0x80,
	}
	h265PPS = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
)

// FakeSource 按配置的帧率生成 Annex-B 访问单元写入环，只有第一个关键帧自带参数集
type FakeSource struct {
	*RingWriter
	conf   *config.Source
	fourCC codec.FourCC
	seq    byte
}

func NewFakeSource(rb *RingBuffer, conf *config.Source) (s *FakeSource, err error) {
	fourCC, ok := codec.ParseFourCC(conf.Codec)
	if !ok {
		return nil, ErrUnsupportCodec
	}
	s = &FakeSource{
		RingWriter: NewRingWriter(rb, fourCC),
		conf:       conf,
		fourCC:     fourCC,
	}
	return
}

func (s *FakeSource) nalu(header []byte, size int) []byte {
	b := make([]byte, max(size, len(header)+1))
	copy(b, header)
	for i := len(header); i < len(b); i++ {
		// 最高位为 1，避免出现起始码
		b[i] = s.seq | 0x80
		s.seq++
	}
	return b
}

// Frame 生成第 n 帧
func (s *FakeSource) Frame(n int) (frame []byte, isKeyFrame bool) {
	gop := max(s.conf.GOP, 1)
	isKeyFrame = n%gop == 0
	var nalus [][]byte
	switch {
	case s.fourCC == codec.FourCC_H265 && isKeyFrame:
		if n == 0 {
			nalus = append(nalus, h265VPS, h265SPS, h265PPS)
		}
		nalus = append(nalus, s.nalu([]byte{0x26, 0x01}, s.conf.KeyFrameSize))
	case s.fourCC == codec.FourCC_H265:
		nalus = append(nalus, s.nalu([]byte{0x02, 0x01}, s.conf.FrameSize))
	case isKeyFrame:
		if n == 0 {
			nalus = append(nalus, h264SPS, h264PPS)
		}
		nalus = append(nalus, s.nalu([]byte{0x65}, s.conf.KeyFrameSize))
	default:
		nalus = append(nalus, s.nalu([]byte{0x41}, s.conf.FrameSize))
	}
	for _, nalu := range nalus {
		frame = append(frame, codec.NALU_Delimiter2...)
		frame = append(frame, nalu...)
	}
	return
}

// Run 按帧率写入，直到 ctx 结束或达到配置的时长
func (s *FakeSource) Run(ctx context.Context) error {
	fps := max(s.conf.FPS, 1)
	if s.conf.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.conf.Duration)
		defer cancel()
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	s.Info("source start", "codec", s.fourCC.String(), "fps", fps, "gop", s.conf.GOP)
	for n := 0; ; n++ {
		frame, _ := s.Frame(n)
		s.WriteAnnexB(frame, time.Duration(n)*time.Second/time.Duration(fps))
		select {
		case <-ctx.Done():
			s.Info("source stop", "frames", s.Count, "dropped", s.Dropped)
			if s.conf.Duration > 0 && ctx.Err() == context.DeadlineExceeded {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
