package matroska

import (
	"errors"
	"testing"
	"time"
)

func TestRoundMs(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{time.Millisecond, 1},
		{499 * time.Microsecond, 0},
		{500 * time.Microsecond, 1},
		{1500 * time.Microsecond, 2},
		{16_670_000 * time.Nanosecond, 17},
		{time.Second, 1000},
		{-499 * time.Microsecond, 0},
		{-500 * time.Microsecond, -1},
		{-1500 * time.Microsecond, -2},
	}
	for _, c := range cases {
		if got := roundMs(c.d); got != c.want {
			t.Errorf("roundMs(%v) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestValidateKeyframeFloor(t *testing.T) {
	tr := &Track{}

	steps := []struct {
		ts   time.Duration
		key  bool
		want int64
		err  error
	}{
		{0, true, 0, nil},
		{40 * time.Millisecond, false, 40, nil},
		{80 * time.Millisecond, false, 80, nil},
		{30 * time.Millisecond, false, 30, nil}, // reordering inside the group
		{80 * time.Millisecond, true, 80, nil},  // keyframe exactly on the new floor
		{79 * time.Millisecond, false, 0, ErrTimestampBelowFloor},
		{90 * time.Millisecond, false, 90, nil},
		{85 * time.Millisecond, true, 0, ErrTimestampBelowFloor},
		{90 * time.Millisecond, true, 90, nil},
	}
	for i, s := range steps {
		n, err := tr.validate(s.ts, s.key)
		if !errors.Is(err, s.err) {
			t.Fatalf("step %d: validate(%v, %v) err = %v, want %v", i, s.ts, s.key, err, s.err)
		}
		if err != nil {
			continue
		}
		if n != s.want {
			t.Fatalf("step %d: validate(%v, %v) = %d, want %d", i, s.ts, s.key, n, s.want)
		}
		tr.commit(n, s.key)
	}
}

func TestValidateFirstPacket(t *testing.T) {
	tr := &Track{}

	if _, err := tr.validate(0, false); !errors.Is(err, ErrMissingInitialKeyFrame) {
		t.Fatalf("first delta frame: err = %v, want ErrMissingInitialKeyFrame", err)
	}
	if _, err := tr.validate(-5*time.Millisecond, true); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("negative timestamp: err = %v, want ErrInvalidTimestamp", err)
	}
	n, err := tr.validate(0, true)
	if err != nil || n != 0 {
		t.Fatalf("keyframe at zero: (%d, %v)", n, err)
	}
}

func TestValidateRejectionKeepsState(t *testing.T) {
	tr := &Track{}

	n, err := tr.validate(0, true)
	if err != nil {
		t.Fatal(err)
	}
	tr.commit(n, true)
	n, err = tr.validate(100*time.Millisecond, false)
	if err != nil {
		t.Fatal(err)
	}
	tr.commit(n, false)

	// A keyframe that fails the floor check must not move the floor.
	if _, err := tr.validate(40*time.Millisecond, true); !errors.Is(err, ErrTimestampBelowFloor) {
		t.Fatalf("keyframe below max seen: err = %v", err)
	}
	if tr.floor != 0 || tr.maxSeen != 100 {
		t.Fatalf("rejected packet mutated state: floor=%d maxSeen=%d", tr.floor, tr.maxSeen)
	}
	if _, err := tr.validate(50*time.Millisecond, false); err != nil {
		t.Fatalf("delta above the untouched floor: %v", err)
	}
}

func TestValidateOffset(t *testing.T) {
	fwd := &Track{opts: TrackOptions{TimestampOffset: 10 * time.Millisecond}}
	n, err := fwd.validate(0, true)
	if err != nil || n != 10 {
		t.Fatalf("forward offset: (%d, %v), want (10, nil)", n, err)
	}

	back := &Track{opts: TrackOptions{TimestampOffset: -10 * time.Millisecond}}
	if _, err := back.validate(5*time.Millisecond, true); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("offset below zero: err = %v, want ErrInvalidTimestamp", err)
	}
	n, err = back.validate(10*time.Millisecond, true)
	if err != nil || n != 0 {
		t.Fatalf("offset to zero: (%d, %v), want (0, nil)", n, err)
	}
}
