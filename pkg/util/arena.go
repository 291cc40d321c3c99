package util

import (
	"fmt"
	"unsafe"
)

func AlignTo[T Integer](n, s T) T {
	return (n + s - 1) / s * s
}

// Arena 环形字节存储，所有取模和越界检查都集中在这里
type Arena struct {
	buf  []byte
	size uint64
}

func NewArena(size int) *Arena {
	return &Arena{
		buf:  make([]byte, size),
		size: uint64(size),
	}
}

func (a *Arena) Size() uint32 {
	return uint32(a.size)
}

func (a *Arena) Released() bool {
	return a.buf == nil
}

func (a *Arena) Release() {
	a.buf = nil
}

// Offset 绝对位置转换为物理偏移
func (a *Arena) Offset(index uint64) int {
	return int(index % a.size)
}

// Segments returns the n bytes starting at absolute index as one or two slices of the
// underlying storage. The second slice is non-empty only when the range wraps.
func (a *Arena) Segments(index uint64, n int) (first, second []byte) {
	if n <= 0 || a.buf == nil {
		return
	}
	if uint64(n) > a.size {
		panic(fmt.Sprintf("arena segments %d > %d", n, a.size))
	}
	offset := a.Offset(index)
	l := min(n, int(a.size)-offset)
	first = a.buf[offset : offset+l]
	if l < n {
		second = a.buf[:n-l]
	}
	return
}

func (a *Arena) WriteAt(index uint64, p []byte) {
	first, second := a.Segments(index, len(p))
	n := copy(first, p)
	copy(second, p[n:])
}

func (a *Arena) ReadAt(index uint64, p []byte) {
	first, second := a.Segments(index, len(p))
	n := copy(p, first)
	copy(p[n:], second)
}

func (a *Arena) Uint32At(index uint64) uint32 {
	var b [4]byte
	a.ReadAt(index, b[:])
	return ReadBE[uint32](b[:])
}

func (a *Arena) PutUint32At(index uint64, v uint32) {
	var b [4]byte
	a.WriteAt(index, PutBE(b[:], v))
}

// Contains 判断切片是否指向本存储
func (a *Arena) Contains(b []byte) bool {
	if len(b) == 0 || len(a.buf) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&a.buf[0]))
	p := uintptr(unsafe.Pointer(&b[0]))
	return p >= start && p-start+uintptr(len(b)) <= uintptr(len(a.buf))
}

func (a *Arena) Zero(index uint64, n int) {
	first, second := a.Segments(index, n)
	clear(first)
	clear(second)
}
