package pkg

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"m7s.live/framering/pkg/config"
	"m7s.live/framering/pkg/util"
)

type RingStats struct {
	Put     uint64 `json:"put"`
	Drop    uint64 `json:"drop"`   // 空间不足丢弃
	Reject  uint64 `json:"reject"` // 超过总容量
	Evict   uint64 `json:"evict"`  // 为关键帧让出空间
	Get     uint64 `json:"get"`
	Pop     uint64 `json:"pop"`
	Free    uint64 `json:"free"`
	Corrupt uint64 `json:"corrupt"`
}

// Lost 丢失的帧数，包括丢弃、拒绝和被驱逐的帧
func (s RingStats) Lost() uint64 {
	return s.Drop + s.Reject + s.Evict
}

// RingBuffer stores variable-length frames back to back in one fixed arena.
// header is the read cursor, popStart the release cursor and tail the write cursor;
// all three are absolute offsets and popStart <= header <= tail.
type RingBuffer struct {
	*slog.Logger
	name     string
	capacity uint32
	mu       sync.Mutex
	arena    *util.Arena
	header   uint64
	popStart uint64
	tail     uint64
	hasLost  bool
	stats    RingStats
}

func NewRingBuffer(elementSize, elementCount int, name string) (rb *RingBuffer) {
	size := util.AlignTo(max(elementSize*elementCount, 0), RingAlign)
	rb = &RingBuffer{
		Logger: slog.With("ring", name),
		name:   name,
	}
	// 记录长度和容量都是 uint32
	if uint64(size) > math.MaxUint32 {
		rb.Error("ring size out of range", "size", size, "max", uint64(math.MaxUint32))
		return
	}
	rb.capacity = uint32(size)
	if size > 0 {
		rb.arena = util.NewArena(size)
	}
	return
}

func NewRingBufferWithConfig(conf *config.Ring) *RingBuffer {
	return NewRingBuffer(conf.ElementSize, conf.ElementCount, conf.Name)
}

func (rb *RingBuffer) GetKey() string {
	return rb.name
}

func (rb *RingBuffer) Name() string {
	return rb.name
}

func (rb *RingBuffer) trace(msg string, args ...any) {
	if rb.Enabled(context.Background(), TraceLevel) {
		rb.Log(context.Background(), TraceLevel, msg, append(args, "tail", rb.tail, "header", rb.header, "pop", rb.popStart)...)
	}
}

func (rb *RingBuffer) corrupt(msg string, args ...any) {
	rb.stats.Corrupt++
	rb.Error(msg, append(args, "tail", rb.tail, "header", rb.header, "pop", rb.popStart)...)
}

func (rb *RingBuffer) setRefCount(index uint64, refCount int32) {
	rb.arena.PutUint32At(index+4, uint32(refCount))
}

func (rb *RingBuffer) decreaseRefCount(view *RecordView, force bool) int32 {
	if force {
		view.RefCount = 0
	} else {
		view.RefCount = max(view.RefCount-1, 0)
	}
	rb.setRefCount(view.Index, view.RefCount)
	return view.RefCount
}

// Put copies prefix followed by payload into the ring as one record.
// Frames that do not fit are dropped, except key frames which first try to
// evict unread frames from the tail.
func (rb *RingBuffer) Put(payload []byte, timestamp time.Duration, isKeyFrame bool, prefix []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	size := len(prefix) + len(payload)
	need := recordSize(size)
	if rb.arena == nil || need > uint64(rb.capacity) || len(prefix) > maxPrefixSize {
		if isKeyFrame {
			rb.hasLost = true
		}
		rb.stats.Reject++
		rb.Warn("drop frame bigger than ring", "size", need, "capacity", rb.capacity, "key", isKeyFrame)
		return false
	}
	head := min(rb.popStart, rb.header)
	if rb.tail < head || rb.tail-head > uint64(rb.capacity) {
		rb.corrupt("cursor out of range")
		return false
	}
	if left := uint64(rb.capacity) - (rb.tail - head); left < need {
		if !isKeyFrame {
			rb.hasLost = true
			rb.stats.Drop++
			rb.Debug("drop frame for ring is full", "size", need, "left", left)
			return false
		}
		if left = rb.evict(head, need); left < need {
			rb.hasLost = true
			rb.stats.Drop++
			rb.Debug("drop key frame for ring is full", "size", need, "left", left)
			return false
		}
		rb.hasLost = false
	}
	rb.write(payload, prefix, timestamp, isKeyFrame, need)
	rb.trace("put", "size", need, "key", isKeyFrame)
	return true
}

// evict 从尾部回退，释放尚未被读取且无人引用的记录
func (rb *RingBuffer) evict(head, need uint64) (left uint64) {
	left = uint64(rb.capacity) - (rb.tail - head)
	for left < need && rb.tail > rb.header {
		prevSize := uint64(rb.arena.Uint32At(rb.tail - RingTailSize))
		if prevSize == 0 || prevSize > rb.tail-rb.header {
			rb.corrupt("previous element size invalid", "size", prevSize)
			break
		}
		view, err := ValidateRecord(rb.arena, rb.tail-prevSize)
		if err != nil {
			rb.corrupt("previous element invalid", "error", err)
			break
		}
		if view.RefCount != 1 || view.Index < rb.header {
			break
		}
		rb.tail = view.Index
		rb.stats.Evict++
		left = uint64(rb.capacity) - (rb.tail - head)
		rb.Debug("evict frame for key frame", "index", view.Index, "size", view.TotalSize)
	}
	return
}

func (rb *RingBuffer) write(payload, prefix []byte, timestamp time.Duration, isKeyFrame bool, need uint64) {
	index := rb.tail
	length := len(prefix) + len(payload)
	h := recordHeader{
		TotalSize: uint32(need),
		RefCount:  1,
		Index:     index,
		Timestamp: timestamp,
		Meta:      packMeta(uint32(need)-RingOverhead-uint32(length), isKeyFrame, len(prefix)),
	}
	b := h.encode()
	rb.arena.WriteAt(index, b[:])
	buf, buf2 := rb.arena.Segments(index+RingHeaderSize, length)
	copySplit(buf, buf2, prefix, payload)
	rb.arena.PutUint32At(index+need-RingTailSize, uint32(need))
	rb.tail += need
	rb.stats.Put++
}

// copySplit writes prefix then payload across the two segments of a record.
// len(buf)+len(buf2) == len(prefix)+len(payload).
func copySplit(buf, buf2, prefix, payload []byte) {
	if len(prefix) <= len(buf) {
		copy(buf, prefix)
		n := copy(buf[len(prefix):], payload)
		copy(buf2, payload[n:])
	} else {
		// prefix 本身跨越了存储末尾
		n := copy(buf, prefix)
		m := copy(buf2, prefix[n:])
		copy(buf2[m:], payload)
	}
}

// Get returns the oldest unread record and takes a reference on it.
// The record stays in place until Pop; release the reference with Free.
func (rb *RingBuffer) Get() *RingElement {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	e, _ := rb.get()
	return e
}

func (rb *RingBuffer) get() (*RingElement, error) {
	if rb.arena == nil || rb.header >= rb.tail {
		return nil, nil
	}
	view, err := ValidateRecord(rb.arena, rb.header)
	if err != nil {
		rb.corrupt("element invalid", "error", err)
		return nil, err
	}
	view.RefCount++
	rb.setRefCount(view.Index, view.RefCount)
	rb.stats.Get++
	rb.trace("get", "index", view.Index, "ref", view.RefCount)
	return newRingElement(rb, &view), nil
}

// Pop moves the read cursor past the oldest record. force drops every
// reference on it, otherwise only the ring's own reference is given up.
func (rb *RingBuffer) Pop(force bool) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.pop(force)
}

func (rb *RingBuffer) pop(force bool) bool {
	if rb.arena == nil || rb.header >= rb.tail {
		return false
	}
	view, err := ValidateRecord(rb.arena, rb.header)
	if err != nil {
		rb.corrupt("element invalid", "error", err)
		return false
	}
	if rb.decreaseRefCount(&view, force) == 0 && rb.popStart == rb.header {
		rb.popStart += uint64(view.TotalSize)
	}
	rb.header += uint64(view.TotalSize)
	rb.stats.Pop++
	rb.trace("pop", "index", view.Index, "ref", view.RefCount)
	return true
}

// Take 原子地完成 Get + Pop(false)，调用者持有返回的记录直到 Free。
// 没有数据时返回 nil, nil
func (rb *RingBuffer) Take() (e *RingElement, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if e, err = rb.get(); e != nil && !rb.pop(false) {
		e, err = nil, ErrDiscard
	}
	return
}

// Free releases one reference taken by Get. When the oldest unreleased record
// drops to zero the release cursor moves past it and every following record
// that is already unreferenced.
func (rb *RingBuffer) Free(e *RingElement, force bool) {
	if e == nil {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.arena == nil {
		return
	}
	if e.parent != rb || !rb.arena.Contains(e.Buf) && e.GetSize() > 0 {
		rb.corrupt("element not from this ring", "index", e.Index)
		return
	}
	if e.Index < rb.popStart {
		return
	}
	if e.Index >= rb.tail {
		rb.corrupt("element is stale", "index", e.Index)
		return
	}
	view, err := ValidateRecord(rb.arena, e.Index)
	if err != nil || view.TotalSize != e.TotalSize || view.Timestamp != e.Timestamp {
		rb.corrupt("element invalid", "index", e.Index, "error", err)
		return
	}
	rb.stats.Free++
	if rb.decreaseRefCount(&view, force) == 0 && e.Index == rb.popStart {
		rb.release(view.TotalSize)
	}
	rb.trace("free", "index", view.Index, "ref", view.RefCount)
}

func (rb *RingBuffer) release(totalSize uint32) {
	if rb.header == rb.popStart {
		rb.header += uint64(totalSize)
	}
	rb.popStart += uint64(totalSize)
	for rb.popStart < rb.header {
		view, err := ValidateRecord(rb.arena, rb.popStart)
		if err != nil {
			rb.corrupt("element invalid", "error", err)
			return
		}
		if view.RefCount != 0 {
			return
		}
		rb.popStart += uint64(view.TotalSize)
	}
}

// RefCount 读取记录当前的引用计数，记录无效时返回 -1
func (rb *RingBuffer) RefCount(e *RingElement) int32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if e == nil || e.parent != rb || e.Index >= rb.tail {
		return -1
	}
	view, err := ValidateRecord(rb.arena, e.Index)
	if err != nil || view.TotalSize != e.TotalSize {
		return -1
	}
	return view.RefCount
}

// Clear 重置所有游标，之前获取的记录句柄全部失效
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.arena == nil {
		return
	}
	rb.header, rb.popStart, rb.tail = 0, 0, 0
	rb.hasLost = false
	rb.arena.Zero(0, min(RingHeaderSize, int(rb.capacity)))
	rb.Debug("clear")
}

// Close 释放存储，之后所有操作都会失败
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.arena != nil {
		rb.arena.Release()
		rb.arena = nil
	}
	rb.header, rb.popStart, rb.tail = 0, 0, 0
}

func (rb *RingBuffer) Size() uint32 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.tail < rb.header {
		return 0
	}
	return uint32(rb.tail - rb.header)
}

func (rb *RingBuffer) Capacity() uint32 {
	return rb.capacity
}

func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.tail == rb.header
}

// IsFull 剩余空间连一条空记录都放不下
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return uint64(rb.capacity)-(rb.tail-min(rb.popStart, rb.header)) < RingOverhead
}

func (rb *RingBuffer) HasLost() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.hasLost
}

func (rb *RingBuffer) ClearLost() {
	rb.mu.Lock()
	rb.hasLost = false
	rb.mu.Unlock()
}

func (rb *RingBuffer) Stats() RingStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.stats
}
