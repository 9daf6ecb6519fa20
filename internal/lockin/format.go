package lockin

import (
	"encoding/binary"
	"fmt"
)

// CodecPCM is the only codec accepted by the lock-in
const CodecPCM = "audio/pcm"

const (
	SampleTypeUnknown SampleType = iota
	SampleTypeSignedInt
	SampleTypeUnsignedInt
	SampleTypeFloat
)

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// SampleType describes how a single channel sample is encoded
type SampleType int

func (t SampleType) String() string {
	switch t {
	case SampleTypeSignedInt:
		return "signed"
	case SampleTypeUnsignedInt:
		return "unsigned"
	case SampleTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// ByteOrder of the raw sample stream, negotiated once per session
type ByteOrder int

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Format is the sample format negotiated with a Source
type Format struct {
	SampleRate int        `json:"sampleRate"` // Hz
	Channels   int        `json:"channels"`
	SampleSize int        `json:"sampleSize"` // bits per sample
	SampleType SampleType `json:"sampleType"`
	ByteOrder  ByteOrder  `json:"byteOrder"`
	Codec      string     `json:"codec"`
}

// DefaultFormat returns the format the lock-in expects: two unsigned 32-bit
// little-endian channels of raw PCM at the given rate.
func DefaultFormat(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   2,
		SampleSize: 32,
		SampleType: SampleTypeUnsignedInt,
		ByteOrder:  LittleEndian,
		Codec:      CodecPCM,
	}
}

// IsValid reports whether every field of the format is populated
func (f Format) IsValid() bool {
	return f.SampleRate > 0 &&
		f.Channels > 0 &&
		f.SampleSize > 0 &&
		f.SampleType != SampleTypeUnknown &&
		f.Codec != ""
}

// FrameSize returns the size of one interleaved frame in bytes
func (f Format) FrameSize() int {
	return f.Channels * f.SampleSize / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit %s %s", f.Codec, f.SampleRate, f.Channels, f.SampleSize, f.SampleType, f.ByteOrder)
}

// IsFormatSupported is the acceptance predicate for the lock-in: exactly two
// channels of raw unsigned 32-bit PCM.
func IsFormatSupported(f Format) bool {
	if f.Codec != CodecPCM {
		return false
	}
	if f.Channels != 2 {
		return false
	}
	if f.SampleType != SampleTypeUnsignedInt {
		return false
	}
	if f.SampleSize != 32 {
		return false
	}

	return true
}
