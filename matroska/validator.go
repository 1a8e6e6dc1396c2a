package matroska

import (
	"fmt"
	"time"
)

// roundMs converts a duration to whole milliseconds, rounding halves away
// from zero. Block timestamps are stored in the segment's millisecond tick.
func roundMs(d time.Duration) int64 {
	if d >= 0 {
		return int64((d + time.Millisecond/2) / time.Millisecond)
	}
	return int64((d - time.Millisecond/2) / time.Millisecond)
}

// validate checks one packet timestamp against the track's ordering rules
// and returns it normalized to milliseconds, track offset applied. It does
// not modify the track: a rejected packet, and a packet whose first-write
// registration fails, must leave the validator exactly where the last
// accepted packet left it. Call commit once the packet is accepted.
func (t *Track) validate(ts time.Duration, keyframe bool) (int64, error) {
	n := roundMs(ts + t.opts.TimestampOffset)
	if n < 0 {
		return 0, fmt.Errorf("%w: %dms", ErrInvalidTimestamp, n)
	}
	if !t.seen && !keyframe {
		return 0, ErrMissingInitialKeyFrame
	}
	// A keyframe seals the group before it: everything already seen
	// becomes the new floor, and the keyframe itself may sit exactly on
	// it.
	floor := t.floor
	if keyframe {
		floor = t.maxSeen
	}
	if n < floor {
		return 0, fmt.Errorf("%w: %dms < %dms", ErrTimestampBelowFloor, n, floor)
	}
	return n, nil
}

// commit advances the validator past an accepted packet.
func (t *Track) commit(n int64, keyframe bool) {
	if keyframe {
		t.floor = t.maxSeen
	}
	if n > t.maxSeen {
		t.maxSeen = n
	}
	t.seen = true
}
