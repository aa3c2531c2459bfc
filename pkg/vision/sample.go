// Package vision provides the consumer side of the vision shared-memory
// segment. The vision process writes a 44-byte seqlock-protected sample at
// ~30 Hz; the coordinator reads it without ever blocking.
package vision

import (
	"encoding/binary"
	"math"
)

// Wire layout of the shared segment, little-endian:
//
//	0   4  seq           (uint32, even = stable, odd = write in progress)
//	4   4  frame_counter (uint32)
//	8   4  num_faces     (uint32)
//	12  4  distance_cm   (float32)
//	16  4  gaze_x        (float32, normalized 0..1)
//	20  4  gaze_y        (float32, normalized 0..1)
//	24  4  confidence    (float32, 0..1)
//	28  4  head_yaw      (float32, radians)
//	32  4  head_pitch    (float32, radians)
//	36  8  timestamp_ns  (uint64)
const (
	SeqSize     = 4
	PayloadSize = 40
	SegmentSize = SeqSize + PayloadSize
)

// FaceSample is a snapshot of the vision pipeline output. It is produced
// once per successful read and replaced wholesale each tick.
type FaceSample struct {
	FrameCounter uint32
	NumFaces     uint32
	DistanceCM   float32
	GazeX        float32 // normalized 0.0-1.0
	GazeY        float32
	Confidence   float32
	HeadYaw      float32 // radians
	HeadPitch    float32
	TimestampNS  uint64
}

// FaceDetected reports whether at least one face is present.
func (s FaceSample) FaceDetected() bool {
	return s.NumFaces > 0
}

// encodePayload writes the 40-byte payload into buf.
func encodePayload(buf []byte, s FaceSample) {
	binary.LittleEndian.PutUint32(buf[0:], s.FrameCounter)
	binary.LittleEndian.PutUint32(buf[4:], s.NumFaces)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(s.DistanceCM))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(s.GazeX))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(s.GazeY))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(s.Confidence))
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(s.HeadYaw))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(s.HeadPitch))
	binary.LittleEndian.PutUint64(buf[32:], s.TimestampNS)
}

// decodePayload parses the 40-byte payload and clamps fields to their
// documented ranges so malformed producer values never reach the core.
func decodePayload(buf []byte) FaceSample {
	s := FaceSample{
		FrameCounter: binary.LittleEndian.Uint32(buf[0:]),
		NumFaces:     binary.LittleEndian.Uint32(buf[4:]),
		DistanceCM:   math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
		GazeX:        math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])),
		GazeY:        math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])),
		Confidence:   math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])),
		HeadYaw:      math.Float32frombits(binary.LittleEndian.Uint32(buf[24:])),
		HeadPitch:    math.Float32frombits(binary.LittleEndian.Uint32(buf[28:])),
		TimestampNS:  binary.LittleEndian.Uint64(buf[32:]),
	}
	s.DistanceCM = clampf(s.DistanceCM, 0, math.MaxFloat32)
	s.GazeX = clampf(s.GazeX, 0, 1)
	s.GazeY = clampf(s.GazeY, 0, 1)
	s.Confidence = clampf(s.Confidence, 0, 1)
	return s
}

func clampf(v, min, max float32) float32 {
	if v != v { // NaN
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
