package sink

import (
	"context"
	"io"
	"log/slog"

	"m7s.live/framering/pkg"
	"m7s.live/framering/pkg/config"
)

// Recorder 把裸码流按顺序写入文件，从第一个关键帧开始
type Recorder struct {
	*slog.Logger
	*pkg.RingReader
	conf   *config.Record
	w      io.Writer
	Frames int
	Bytes  int64
}

func NewRecorder(rb *pkg.RingBuffer, w io.Writer, conf *config.Record) *Recorder {
	r := &Recorder{
		Logger:     rb.With("sink", "record"),
		RingReader: pkg.NewRingReader(rb),
		conf:       conf,
		w:          w,
	}
	r.SkipToKeyFrame = true
	return r
}

func (r *Recorder) WriteFrame(f *pkg.RingElement) (err error) {
	var n int64
	n, err = f.Memory().WriteTo(r.w)
	r.Bytes += n
	r.Frames++
	return
}

func (r *Recorder) Run(ctx context.Context) error {
	r.Info("record start", "file", r.conf.FilePath)
	err := Poll(ctx, r.RingReader, r.conf.Interval, r.WriteFrame)
	r.Info("record stop", "frames", r.Frames, "bytes", r.Bytes, "reason", err)
	return err
}
