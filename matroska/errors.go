package matroska

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimestamp is returned when a packet's timestamp, after the
	// track offset, comes out negative.
	ErrInvalidTimestamp = errors.New("matroska: negative timestamp")

	// ErrTimestampBelowFloor is returned when a packet lands before the
	// highest timestamp seen prior to the most recent keyframe. Reordering
	// within a group of pictures is allowed; reaching into the previous one
	// is not.
	ErrTimestampBelowFloor = errors.New("matroska: timestamp below keyframe floor")

	// ErrMissingInitialKeyFrame is returned when a track's first packet is
	// not a keyframe.
	ErrMissingInitialKeyFrame = errors.New("matroska: first packet of a track must be a keyframe")

	// ErrMissingDecoderConfig is returned when a track's first packet lacks
	// decoder configuration the codec requires and the muxer cannot
	// synthesize.
	ErrMissingDecoderConfig = errors.New("matroska: missing decoder configuration")

	// ErrUnsupportedCodec is returned for codec strings the registry does
	// not know or the chosen doctype does not permit.
	ErrUnsupportedCodec = errors.New("matroska: unsupported codec")

	// ErrInvalidState is the class for calls that do not fit the muxer's
	// lifecycle: writing before Start, adding tracks after Start, touching a
	// finalized or canceled muxer.
	ErrInvalidState = errors.New("matroska: invalid state")

	// ErrAlreadyFinalized is returned by a second Finalize. It wraps
	// ErrInvalidState.
	ErrAlreadyFinalized = fmt.Errorf("%w: already finalized", ErrInvalidState)

	// ErrTrackClosed is returned when writing to a closed track. It wraps
	// ErrInvalidState.
	ErrTrackClosed = fmt.Errorf("%w: track closed", ErrInvalidState)
)
