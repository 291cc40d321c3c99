package sink

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/rtp"
	"golang.org/x/sync/errgroup"

	"m7s.live/framering/pkg"
	"m7s.live/framering/pkg/codec"
	"m7s.live/framering/pkg/config"
)

type packetWriter struct {
	packets []rtp.Packet
}

func (w *packetWriter) Write(b []byte) (int, error) {
	var p rtp.Packet
	if err := p.Unmarshal(bytes.Clone(b)); err != nil {
		return 0, err
	}
	w.packets = append(w.packets, p)
	return len(b), nil
}

func annexB(nalus ...[]byte) (frame []byte) {
	for _, nalu := range nalus {
		frame = append(frame, codec.NALU_Delimiter2...)
		frame = append(frame, nalu...)
	}
	return
}

func nalu(typ byte, size int) []byte {
	b := bytes.Repeat([]byte{0x11}, size)
	b[0] = typ
	return b
}

func TestRTP(t *testing.T) {
	rb := pkg.NewRingBuffer(4096, 1, "rtp")
	var w packetWriter
	conf := &config.RTP{MTU: 100, PayloadType: 96, Interval: time.Millisecond}
	s, err := NewRTP(rb, codec.FourCC_H264, &w, conf)
	if err != nil {
		t.Fatal(err)
	}
	rb.Put(annexB(nalu(0x65, 300)), 0, true, annexB(nalu(0x67, 10), nalu(0x68, 4)))
	rb.Put(annexB(nalu(0x41, 50)), 40*time.Millisecond, false, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err = s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal(err)
	}
	if len(w.packets) < 3 || s.Packets != len(w.packets) {
		t.Fatalf("packets %d", len(w.packets))
	}
	last := w.packets[len(w.packets)-1]
	if !last.Marker || last.Timestamp != 3600 {
		t.Fatalf("last packet %s", last.String())
	}
	var markers int
	for i, p := range w.packets {
		if p.MarshalSize() > conf.MTU {
			t.Errorf("packet %d too big", i)
		}
		if p.PayloadType != 96 || p.SSRC != s.SSRC {
			t.Errorf("packet %d header %s", i, p.String())
		}
		if i > 0 && p.SequenceNumber != w.packets[i-1].SequenceNumber+1 {
			t.Errorf("packet %d sequence %d", i, p.SequenceNumber)
		}
		if p.Marker {
			markers++
			if i < len(w.packets)-1 && p.Timestamp != 0 {
				t.Errorf("key frame timestamp %d", p.Timestamp)
			}
		}
	}
	if markers != 2 {
		t.Fatalf("markers %d", markers)
	}
	if !rb.IsEmpty() {
		t.Fatal("ring not drained")
	}
	if err = rb.Check(); err != nil {
		t.Fatal(err)
	}
	if _, err = NewRTP(rb, codec.FourCC_H265, &w, conf); !errors.Is(err, pkg.ErrUnsupportCodec) {
		t.Fatal("h265 accepted")
	}
}

func TestRecorder(t *testing.T) {
	rb := pkg.NewRingBuffer(256, 1, "record")
	var out bytes.Buffer
	r := NewRecorder(rb, &out, &config.Record{Interval: time.Millisecond})
	p1 := annexB(nalu(0x41, 20))
	prefix := annexB(nalu(0x67, 10), nalu(0x68, 4))
	key := annexB(nalu(0x65, 60))
	p2 := annexB(nalu(0x41, 30))
	rb.Put(p1, 0, false, nil)
	rb.Put(key, 40*time.Millisecond, true, prefix)
	rb.Put(p2, 80*time.Millisecond, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
	expect := bytes.Join([][]byte{prefix, key, p2}, nil)
	if !bytes.Equal(out.Bytes(), expect) {
		t.Fatalf("recorded %d bytes, expect %d", out.Len(), len(expect))
	}
	if r.Frames != 2 || r.Skipped != 1 || r.Bytes != int64(len(expect)) {
		t.Fatalf("frames %d skipped %d", r.Frames, r.Skipped)
	}
	if err := rb.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestRTPTimestamp(t *testing.T) {
	if ts := rtpTimestamp(40 * time.Millisecond); ts != 3600 {
		t.Fatal(ts)
	}
	// 30 小时后 90kHz 时钟已经回绕
	base := 30 * time.Hour
	if ts := rtpTimestamp(base); ts != 1130065408 {
		t.Fatal(ts)
	}
	if d := rtpTimestamp(base+40*time.Millisecond) - rtpTimestamp(base); d != 3600 {
		t.Fatal(d)
	}
}

func TestSinksOwnRing(t *testing.T) {
	rtpRing := pkg.NewRingBuffer(65536, 1, "rtp")
	recordRing := pkg.NewRingBuffer(65536, 1, "record")
	w := pkg.NewRingWriter(rtpRing, codec.FourCC_H264)
	w.Tee(recordRing)
	sps, pps := nalu(0x67, 10), nalu(0x68, 4)
	var expect bytes.Buffer
	const frames = 200
	for i := range frames {
		var frame []byte
		switch {
		case i == 0:
			frame = annexB(sps, pps, nalu(0x65, 100))
		case i%50 == 0:
			frame = annexB(nalu(0x65, 100))
			expect.Write(annexB(sps, pps))
		default:
			frame = annexB(nalu(0x41, 100))
		}
		expect.Write(frame)
		if !w.WriteAnnexB(frame, time.Duration(i)*40*time.Millisecond) {
			t.Fatal("write", i)
		}
	}
	var packets packetWriter
	s, err := NewRTP(rtpRing, codec.FourCC_H264, &packets, &config.RTP{MTU: 1200, PayloadType: 96, Interval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := NewRecorder(recordRing, &out, &config.Record{Interval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var g errgroup.Group
	g.Go(func() error { return s.Run(ctx) })
	g.Go(func() error { return r.Run(ctx) })
	if err = g.Wait(); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal(err)
	}
	if s.Count != frames || r.Frames != frames {
		t.Fatalf("rtp frames %d recorder frames %d", s.Count, r.Frames)
	}
	if !bytes.Equal(out.Bytes(), expect.Bytes()) {
		t.Fatalf("recorded %d/%d bytes", out.Len(), expect.Len())
	}
	if !rtpRing.IsEmpty() || !recordRing.IsEmpty() {
		t.Fatal("rings not drained")
	}
}
