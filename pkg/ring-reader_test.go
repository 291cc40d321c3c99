package pkg

import (
	"testing"
)

func TestRingReader(t *testing.T) {
	rb := NewRingBuffer(512, 1, "reader")
	r := NewRingReader(rb)
	mustPut(t, rb, frame(50, 1), false, nil)
	mustPut(t, rb, frame(50, 2), true, nil)
	mustPut(t, rb, frame(50, 3), false, nil)

	f, err := r.TryRead()
	if err != nil || f == nil || !f.IsKeyFrame {
		t.Fatal("expect key frame first", f, err)
	}
	if r.Skipped != 1 || r.Count != 1 || r.Value != f {
		t.Fatalf("skipped %d count %d", r.Skipped, r.Count)
	}
	if rb.RefCount(f) != 1 {
		t.Fatalf("reader should hold the frame, ref %d", rb.RefCount(f))
	}
	if f, err = r.TryRead(); err != nil || f == nil || f.IsKeyFrame {
		t.Fatal("expect p frame", f, err)
	}
	if f, err = r.TryRead(); err != nil || f != nil || r.Value != nil {
		t.Fatal("expect nothing", f, err)
	}
	mustCheck(t, rb)
	if !rb.IsEmpty() || rb.Size() != 0 {
		t.Fatal("ring not drained")
	}

	t.Run("skip after loss", func(t *testing.T) {
		for rb.Put(frame(100, 4), 0, false, nil) {
		}
		mustPut(t, rb, frame(50, 5), true, nil)
		f, err := r.TryRead()
		if err != nil || f == nil || !f.IsKeyFrame {
			t.Fatal("expect key frame after loss", f, err)
		}
		if r.Skipped != 4 {
			t.Fatalf("skipped %d", r.Skipped)
		}
		r.StopRead()
		mustCheck(t, rb)
		if !rb.IsEmpty() || rb.popStart != rb.tail {
			t.Fatal("reader kept a reference")
		}
	})

	t.Run("no skip", func(t *testing.T) {
		r := NewRingReader(rb)
		r.SkipToKeyFrame = false
		mustPut(t, rb, frame(10, 6), false, nil)
		if f, _ := r.TryRead(); f == nil || f.IsKeyFrame {
			t.Fatal("expect p frame")
		}
		r.StopRead()
	})
}
