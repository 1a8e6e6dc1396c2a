package codecs

// IsVP8Keyframe reads the frame tag at the start of a VP8 payload: the low
// bit of the first byte is zero for key frames.
func IsVP8Keyframe(frame []byte) bool {
	return len(frame) > 0 && frame[0]&0x01 == 0
}

// VP8KeyframeDimensions parses width and height out of a VP8 keyframe
// header. Returns zeros when the frame is not a keyframe or is truncated.
func VP8KeyframeDimensions(frame []byte) (width, height int) {
	if !IsVP8Keyframe(frame) || len(frame) < 10 {
		return 0, 0
	}
	// Start code 9d 01 2a follows the 3-byte frame tag.
	if frame[3] != 0x9D || frame[4] != 0x01 || frame[5] != 0x2A {
		return 0, 0
	}
	width = int(frame[6]) | (int(frame[7])&0x3F)<<8
	height = int(frame[8]) | (int(frame[9])&0x3F)<<8
	return width, height
}
