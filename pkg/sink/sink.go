package sink

import (
	"context"
	"time"

	"m7s.live/framering/pkg"
)

// Frame 写出一帧，调用期间帧由读者持有
type Frame func(*pkg.RingElement) error

// Poll 不断从读者取帧交给 write，没有数据时等待 interval
func Poll(ctx context.Context, reader *pkg.RingReader, interval time.Duration, write Frame) (err error) {
	defer reader.StopRead()
	if interval <= 0 {
		interval = time.Millisecond
	}
	for {
		var f *pkg.RingElement
		if f, err = reader.TryRead(); err != nil {
			return
		}
		if f != nil {
			if err = write(f); err != nil {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(interval):
		}
	}
}
