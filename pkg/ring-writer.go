package pkg

import (
	"time"

	"m7s.live/framering/pkg/codec"
)

// RingWriter 编码器输出的写入端，识别关键帧并给关键帧补上参数集
// 环只有一个读游标，多个输出时每个输出各用一个环，由 Tee 加入
type RingWriter struct {
	*RingBuffer
	*codec.ParamSets
	tees    []*RingBuffer
	Count   int // 所有环都写入成功的帧数
	Dropped int // 至少一个环没有写入的帧数
}

func NewRingWriter(rb *RingBuffer, fourCC codec.FourCC) *RingWriter {
	return &RingWriter{
		RingBuffer: rb,
		ParamSets:  codec.NewParamSets(fourCC),
	}
}

// WriteAnnexB 写入一个 Annex-B 格式的访问单元
func (w *RingWriter) WriteAnnexB(frame []byte, ts time.Duration) bool {
	nalus, err := codec.SplitAnnexB(frame)
	if err != nil {
		w.Warn("invalid annexb frame", "error", err, "size", len(frame))
		w.Dropped++
		return false
	}
	if w.Update(nalus) && w.Ready() {
		if ctx, err := w.ParseCtx(); err != nil {
			w.Warn("parse codec", "codec", w.ParamSets.FourCC.String(), "error", err)
		} else {
			w.Info("codec changed", "codec", w.ParamSets.FourCC.String(), "info", ctx.GetInfo())
		}
	}
	return w.Write(frame, ts, w.IsKeyFrame(nalus), nalus)
}

// Tee 之后写入的每一帧也写入 rb
func (w *RingWriter) Tee(rb ...*RingBuffer) {
	w.tees = append(w.tees, rb...)
}

func (w *RingWriter) Write(frame []byte, ts time.Duration, isKeyFrame bool, nalus [][]byte) (ok bool) {
	var prefix []byte
	if isKeyFrame && !w.Carried(nalus) {
		prefix = w.Prefix()
	}
	ok = w.Put(frame, ts, isKeyFrame, prefix)
	for _, rb := range w.tees {
		ok = rb.Put(frame, ts, isKeyFrame, prefix) && ok
	}
	if ok {
		w.Count++
	} else {
		w.Dropped++
	}
	return
}
