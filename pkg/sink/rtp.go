package sink

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"m7s.live/framering/pkg"
	"m7s.live/framering/pkg/codec"
	"m7s.live/framering/pkg/config"
)

const H264ClockRate = 90000

// RTP 把环中的 H264 帧打包成 RTP 包写出
type RTP struct {
	*slog.Logger
	*pkg.RingReader
	conf      *config.RTP
	w         io.Writer
	payloader codecs.H264Payloader
	sequencer rtp.Sequencer
	SSRC      uint32
	Packets   int
	Bytes     int
}

func NewRTP(rb *pkg.RingBuffer, fourCC codec.FourCC, w io.Writer, conf *config.RTP) (s *RTP, err error) {
	if fourCC != codec.FourCC_H264 {
		return nil, pkg.ErrUnsupportCodec
	}
	s = &RTP{
		Logger:     rb.With("sink", "rtp"),
		RingReader: pkg.NewRingReader(rb),
		conf:       conf,
		w:          w,
		sequencer:  rtp.NewRandomSequencer(),
		SSRC:       rand.Uint32(),
	}
	return
}

func (s *RTP) createPacket(payload []byte, ts uint32) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: s.sequencer.NextSequenceNumber(),
			Timestamp:      ts,
			SSRC:           s.SSRC,
			PayloadType:    s.conf.PayloadType,
		},
		Payload: payload,
	}
}

// WriteFrame 整帧（含参数集前缀）交给 payloader 拆分，最后一个包打上 marker
func (s *RTP) WriteFrame(f *pkg.RingElement) error {
	data := f.Buf
	if f.Size2 > 0 {
		data = f.Bytes()
	}
	ts := rtpTimestamp(f.Timestamp)
	payloads := s.payloader.Payload(uint16(s.conf.MTU-rtpHeaderSize), data)
	for i, payload := range payloads {
		packet := s.createPacket(payload, ts)
		packet.Marker = i == len(payloads)-1
		b, err := packet.Marshal()
		if err != nil {
			return err
		}
		if _, err = s.w.Write(b); err != nil {
			return err
		}
		s.Packets++
		s.Bytes += len(b)
	}
	s.Log(context.Background(), pkg.TraceLevel, "rtp frame", "index", f.Index, "packets", len(payloads), "key", f.IsKeyFrame)
	return nil
}

func (s *RTP) Run(ctx context.Context) error {
	s.Info("rtp sink start", "ssrc", s.SSRC, "mtu", s.conf.MTU)
	err := Poll(ctx, s.RingReader, s.conf.Interval, s.WriteFrame)
	s.Info("rtp sink stop", "packets", s.Packets, "bytes", s.Bytes, "reason", err)
	return err
}

const rtpHeaderSize = 12

// rtpTimestamp 90kHz 时间戳，超过 uint32 后回绕
func rtpTimestamp(ts time.Duration) uint32 {
	sec, rem := int64(ts/time.Second), int64(ts%time.Second)
	return uint32(sec*H264ClockRate + rem*H264ClockRate/int64(time.Second))
}
