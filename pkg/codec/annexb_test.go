package codec

import (
	"bytes"
	"testing"
)

var (
	testSPS = []byte{
		0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
		0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
		0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9, 0x20,
	}
	testPPS  = []byte{0x68, 0xce, 0x3c, 0x80}
	testIDR  = []byte{0x65, 0x88, 0x84, 0x11, 0x22}
	testP    = []byte{0x41, 0x9a, 0x02, 0x33}
	testVPS5 = []byte{
		0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60,
		0x00, 0x00, 0x03, 0x00, 0x90, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x03, 0x00, 0x78, 0x99, 0x98, 0x09,
	}
	testSPS5 = []byte{
		0x42, 0x01, 0x01, 0x01, 0x60, 0x00, 0x00, 0x03,
		0x00, 0x90, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03,
		0x00, 0x78, 0xa0, 0x03, 0xc0, 0x80, 0x10, 0xe5,
		0x96, 0x66, 0x69, 0x24, 0xca, 0xe0, 0x10, 0x00,
		0x00, 0x03, 0x00, 0x10, 0x00, 0x00, 0x03, 0x01,
		0xe0, 0x80,
	}
	testPPS5 = []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
	testIDR5 = []byte{0x26, 0x01, 0xaf, 0x09}
	testP5   = []byte{0x02, 0x01, 0xd0, 0x10}
)

func annexB(nalus ...[]byte) (frame []byte) {
	for _, nalu := range nalus {
		frame = append(frame, NALU_Delimiter2...)
		frame = append(frame, nalu...)
	}
	return
}

func TestSplitAnnexB(t *testing.T) {
	nalus, err := SplitAnnexB(annexB(testSPS, testPPS, testIDR))
	if err != nil {
		t.Fatal(err)
	}
	if len(nalus) != 3 || !bytes.Equal(nalus[2], testIDR) {
		t.Fatalf("nalus %x", nalus)
	}
	if !H264IsKeyFrame(nalus) {
		t.Fatal("idr not detected")
	}
	if H264IsKeyFrame([][]byte{testP}) {
		t.Fatal("p frame reported as key frame")
	}
	if ParseH264NALUType(testSPS[0]) != NALU_SPS {
		t.Fatal("nalu type")
	}
	if _, err = SplitAnnexB([]byte{0x65, 0x01}); err == nil {
		t.Fatal("frame without start code accepted")
	}
}

func TestParamSetsH264(t *testing.T) {
	p := NewParamSets(FourCC_H264)
	if p.Ready() || p.Prefix() != nil {
		t.Fatal("empty param sets ready")
	}
	key := [][]byte{testSPS, testPPS, testIDR}
	if !p.Update(key) {
		t.Fatal("first update not reported")
	}
	if p.Update(key) {
		t.Fatal("unchanged update reported")
	}
	if !p.Ready() || !p.Carried(key) || p.Carried([][]byte{testIDR}) {
		t.Fatal("ready/carried")
	}
	if !bytes.Equal(p.Prefix(), annexB(testSPS, testPPS)) {
		t.Fatalf("prefix %x", p.Prefix())
	}
	if !p.IsKeyFrame([][]byte{testIDR}) || p.IsKeyFrame([][]byte{testP}) {
		t.Fatal("key frame detection")
	}
	// 参数集被复制，不引用调用者的内存
	key[0][1] = 0
	if p.SPS[1] == 0 {
		t.Fatal("sps not cloned")
	}
	key[0][1] = 0x42
	if _, err := NewParamSets(FourCC_H264).ParseCtx(); err == nil {
		t.Fatal("parse without sps")
	}
}

func TestParamSetsH265(t *testing.T) {
	p := NewParamSets(FourCC_H265)
	p.Update([][]byte{testSPS5, testPPS5})
	if p.Ready() {
		t.Fatal("h265 ready without vps")
	}
	if !p.Update([][]byte{testVPS5, testSPS5, testPPS5, testIDR5}) || !p.Ready() {
		t.Fatal("h265 not ready")
	}
	if !bytes.Equal(p.Prefix(), annexB(testVPS5, testSPS5, testPPS5)) {
		t.Fatalf("prefix %x", p.Prefix())
	}
	if !p.IsKeyFrame([][]byte{testIDR5}) || p.IsKeyFrame([][]byte{testP5}) {
		t.Fatal("key frame detection")
	}
	if ParseH265NALUType(testVPS5[0]) != NAL_UNIT_VPS || !NAL_UNIT_CODED_SLICE_CRA.IsIRAP() {
		t.Fatal("nalu type")
	}
}

func TestParseFourCC(t *testing.T) {
	for name, expect := range map[string]FourCC{"h264": FourCC_H264, "AVC": FourCC_H264, "hevc": FourCC_H265, "H265": FourCC_H265} {
		if f, ok := ParseFourCC(name); !ok || f != expect {
			t.Errorf("%s: %s", name, f.String())
		}
	}
	if _, ok := ParseFourCC("vp9"); ok {
		t.Error("unsupported codec parsed")
	}
}

func TestParamSetsParseCtx(t *testing.T) {
	for _, c := range []struct {
		fourCC FourCC
		nalus  [][]byte
		info   string
	}{
		{FourCC_H264, [][]byte{testSPS, testPPS, testIDR}, "fps: 30, resolution: 1920x1080"},
		{FourCC_H265, [][]byte{testVPS5, testSPS5, testPPS5, testIDR5}, "fps: 0, resolution: 1920x1080"},
	} {
		p := NewParamSets(c.fourCC)
		p.Update(c.nalus)
		ctx, err := p.ParseCtx()
		if err != nil {
			t.Fatal(c.fourCC.String(), err)
		}
		if ctx.FourCC() != c.fourCC || ctx.GetInfo() != c.info {
			t.Fatalf("%s: %s", c.fourCC.String(), ctx.GetInfo())
		}
		if cached, _ := p.ParseCtx(); cached != ctx {
			t.Fatal("codec ctx not cached")
		}
	}
	// SPS 被截断
	p := NewParamSets(FourCC_H264)
	p.Update([][]byte{testSPS[:8], testPPS})
	if _, err := p.ParseCtx(); err == nil {
		t.Fatal("truncated sps parsed")
	}
}
