package pkg

import (
	"fmt"
	"time"

	"m7s.live/framering/pkg/util"
)

// 记录布局: header | prefix+payload | padding | tail
// header: totalSize(4) refCount(4) index(8) timestamp(8) meta(4)
// meta: bit0-1 padding, bit2 key frame, bit3-31 prefix size
const (
	RingHeaderSize = 28
	RingTailSize   = 4
	RingAlign      = 4
	RingOverhead   = RingHeaderSize + RingTailSize

	metaPadMask   = 0x3
	metaKeyFrame  = 0x4
	metaPrefixOff = 3
	maxPrefixSize = 1<<(32-metaPrefixOff) - 1
)

type recordHeader struct {
	TotalSize uint32
	RefCount  int32
	Index     uint64
	Timestamp time.Duration
	Meta      uint32
}

func (h *recordHeader) encode() (b [RingHeaderSize]byte) {
	util.PutBE(b[0:4], h.TotalSize)
	util.PutBE(b[4:8], uint32(h.RefCount))
	util.PutBE(b[8:16], h.Index)
	util.PutBE(b[16:24], uint64(h.Timestamp))
	util.PutBE(b[24:28], h.Meta)
	return
}

func (h *recordHeader) decode(b []byte) {
	h.TotalSize = util.ReadBE[uint32](b[0:4])
	h.RefCount = int32(util.ReadBE[uint32](b[4:8]))
	h.Index = util.ReadBE[uint64](b[8:16])
	h.Timestamp = time.Duration(util.ReadBE[uint64](b[16:24]))
	h.Meta = util.ReadBE[uint32](b[24:28])
}

func packMeta(pad uint32, isKeyFrame bool, prefixSize int) (meta uint32) {
	meta = pad&metaPadMask | uint32(prefixSize)<<metaPrefixOff
	if isKeyFrame {
		meta |= metaKeyFrame
	}
	return
}

func recordSize(size int) uint64 {
	return util.AlignTo(uint64(size)+RingOverhead, RingAlign)
}

// RecordView 从环形存储中解码出的一条记录
type RecordView struct {
	Index      uint64
	TotalSize  uint32
	Length     uint32 // prefix + payload
	PrefixSize uint32
	Timestamp  time.Duration
	IsKeyFrame bool
	RefCount   int32
}

// Segments returns the record's prefix+payload bytes inside the arena.
func (v *RecordView) Segments(arena *util.Arena) (buf, buf2 []byte) {
	return arena.Segments(v.Index+RingHeaderSize, int(v.Length))
}

// ValidateRecord decodes the record starting at absolute index and checks that the header
// and the trailing size marker agree. It reads the arena only; callers hold the ring lock.
func ValidateRecord(arena *util.Arena, index uint64) (view RecordView, err error) {
	if arena == nil || arena.Released() {
		return view, ErrRingClosed
	}
	capacity := arena.Size()
	if capacity < RingOverhead {
		return view, ErrRecordSize
	}
	var b [RingHeaderSize]byte
	var h recordHeader
	arena.ReadAt(index, b[:])
	h.decode(b[:])
	if h.TotalSize < RingOverhead || h.TotalSize > capacity || h.TotalSize%RingAlign != 0 {
		return view, fmt.Errorf("%w: %d at %d", ErrRecordSize, h.TotalSize, index)
	}
	if tail := arena.Uint32At(index + uint64(h.TotalSize) - RingTailSize); tail != h.TotalSize {
		return view, fmt.Errorf("%w: tail %d total %d at %d", ErrRecordTrailer, tail, h.TotalSize, index)
	}
	if h.Index != index {
		return view, fmt.Errorf("%w: stored %d at %d", ErrRecordIndex, h.Index, index)
	}
	pad := h.Meta & metaPadMask
	length := h.TotalSize - RingOverhead - pad
	prefixSize := h.Meta >> metaPrefixOff
	if h.TotalSize-RingOverhead < pad || prefixSize > length || h.RefCount < 0 || uint32(recordSize(int(length))) != h.TotalSize {
		return view, fmt.Errorf("%w: meta %#x total %d at %d", ErrRecordLayout, h.Meta, h.TotalSize, index)
	}
	view = RecordView{
		Index:      index,
		TotalSize:  h.TotalSize,
		Length:     length,
		PrefixSize: prefixSize,
		Timestamp:  h.Timestamp,
		IsKeyFrame: h.Meta&metaKeyFrame != 0,
		RefCount:   h.RefCount,
	}
	return
}

// RingElement 指向环形存储中一条记录的句柄，Buf/Buf2 直接引用存储，不复制
type RingElement struct {
	TotalSize  uint32
	Size       uint32 // Buf 长度
	Size2      uint32 // Buf2 长度，记录跨越存储末尾时大于0
	PrefixSize uint32
	Timestamp  time.Duration
	IsKeyFrame bool
	Index      uint64
	Buf        []byte
	Buf2       []byte
	parent     *RingBuffer
}

func newRingElement(parent *RingBuffer, view *RecordView) *RingElement {
	buf, buf2 := view.Segments(parent.arena)
	return &RingElement{
		TotalSize:  view.TotalSize,
		Size:       uint32(len(buf)),
		Size2:      uint32(len(buf2)),
		PrefixSize: view.PrefixSize,
		Timestamp:  view.Timestamp,
		IsKeyFrame: view.IsKeyFrame,
		Index:      view.Index,
		Buf:        buf,
		Buf2:       buf2,
		parent:     parent,
	}
}

func (e *RingElement) GetSize() int {
	return int(e.Size + e.Size2)
}

func (e *RingElement) Memory() util.Memory {
	return util.NewMemory(e.Buf, e.Buf2)
}

// Bytes 复制出完整的记录内容
func (e *RingElement) Bytes() []byte {
	return e.Memory().ToBytes()
}

// Payload 去掉 prefix 后的内容
func (e *RingElement) Payload() (m util.Memory) {
	if skip := int(e.PrefixSize); skip < len(e.Buf) {
		m.Append(e.Buf[skip:], e.Buf2)
	} else {
		m.Append(e.Buf2[skip-len(e.Buf):])
	}
	return
}

func (e *RingElement) String() string {
	return fmt.Sprintf("index: %d, size: %d+%d, prefix: %d, ts: %s, key: %v", e.Index, e.Size, e.Size2, e.PrefixSize, e.Timestamp, e.IsKeyFrame)
}
