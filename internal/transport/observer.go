package transport

import (
	"fmt"
	"time"
)

// TimestampFunc receives a formatted timestamp line for a block that was
// written or read. *logx.Logger.Log satisfies a compatible shape.
type TimestampFunc func(origin, message string)

// TimestampObserver logs a timestamp for every block written or read,
// grounded on TimestampObserver.{h,cpp}.
type TimestampObserver struct {
	Emit TimestampFunc
	now  func() time.Time
}

// NewTimestampObserver builds an observer that calls emit for every
// block boundary, timestamped with time.Now.
func NewTimestampObserver(emit TimestampFunc) *TimestampObserver {
	return &TimestampObserver{Emit: emit, now: time.Now}
}

func (o *TimestampObserver) OnBlockWritten(length int) {
	if o.Emit == nil {
		return
	}
	o.Emit("TimestampObserver", fmt.Sprintf("%s: wrote %d bytes", o.now().UTC().Format(time.RFC3339Nano), length))
}

func (o *TimestampObserver) OnBlockRead(length int) {
	if o.Emit == nil {
		return
	}
	o.Emit("TimestampObserver", fmt.Sprintf("%s: read %d bytes", o.now().UTC().Format(time.RFC3339Nano), length))
}
