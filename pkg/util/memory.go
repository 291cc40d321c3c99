package util

import (
	"io"
	"net"
)

// Memory 多段内存视图，不复制数据
type Memory struct {
	Size    int
	Buffers [][]byte
}

func NewMemory(b ...[]byte) (m Memory) {
	m.Append(b...)
	return
}

func (m *Memory) Append(b ...[]byte) {
	for _, level0 := range b {
		if len(level0) == 0 {
			continue
		}
		m.Buffers = append(m.Buffers, level0)
		m.Size += len(level0)
	}
}

func (m Memory) Count() int {
	return len(m.Buffers)
}

func (m Memory) WriteTo(w io.Writer) (n int64, err error) {
	buffers := make(net.Buffers, len(m.Buffers))
	copy(buffers, m.Buffers)
	return buffers.WriteTo(w)
}

// CopyTo 复制到连续内存，返回复制的字节数
func (m Memory) CopyTo(buf []byte) (n int) {
	for _, b := range m.Buffers {
		if n >= len(buf) {
			break
		}
		n += copy(buf[n:], b)
	}
	return
}

func (m Memory) ToBytes() []byte {
	ret := make([]byte, m.Size)
	m.CopyTo(ret)
	return ret
}

// Range 依次遍历每一段内存，返回 false 时停止
func (m Memory) Range(yield func([]byte) bool) {
	for _, b := range m.Buffers {
		if !yield(b) {
			return
		}
	}
}
