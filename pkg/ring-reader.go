package pkg

// RingReader 消费者游标，持有最近读到的一帧直到下一次读取或 StopRead
type RingReader struct {
	*RingBuffer
	Value          *RingElement
	Count          int  // 读取的帧数
	Skipped        int  // 等待关键帧时丢弃的帧数
	SkipToKeyFrame bool // 发现丢帧后跳到下一个关键帧
	lost           uint64
	waitKey        bool
}

func NewRingReader(rb *RingBuffer) *RingReader {
	return &RingReader{
		RingBuffer:     rb,
		SkipToKeyFrame: true,
		waitKey:        true,
		lost:           rb.Stats().Lost(),
	}
}

func (r *RingReader) checkLost() {
	if lost := r.Stats().Lost(); lost != r.lost {
		r.lost = lost
		if r.SkipToKeyFrame {
			r.waitKey = true
		}
	}
}

// TryRead 释放上一帧并取出下一帧，没有数据时返回 nil
func (r *RingReader) TryRead() (f *RingElement, err error) {
	r.Release()
	r.checkLost()
	for {
		if f, err = r.Take(); f == nil {
			return
		}
		if r.waitKey && r.SkipToKeyFrame && !f.IsKeyFrame {
			r.Free(f, false)
			r.Skipped++
			continue
		}
		r.waitKey = false
		r.Count++
		r.Value = f
		return
	}
}

func (r *RingReader) Release() {
	if r.Value != nil {
		r.Free(r.Value, false)
		r.Value = nil
	}
}

func (r *RingReader) StopRead() {
	r.Release()
}
