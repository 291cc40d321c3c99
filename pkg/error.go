package pkg

import "errors"

var (
	ErrDiscard        = errors.New("discard")
	ErrUnsupportCodec = errors.New("unsupport codec")
	ErrRingClosed     = errors.New("ring closed")
	ErrRecordSize     = errors.New("record size invalid")
	ErrRecordTrailer  = errors.New("record trailer mismatch")
	ErrRecordIndex    = errors.New("record index mismatch")
	ErrRecordLayout   = errors.New("record layout invalid")
	ErrRingCursor     = errors.New("ring cursor out of order")
	ErrRingHole       = errors.New("ring has a hole")
	ErrRingRelease    = errors.New("ring release cursor stuck")
)
