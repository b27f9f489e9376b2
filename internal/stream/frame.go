package stream

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// Wire layout of the Entertainment API v1 broadcast frame.
const (
	ProtocolTag  = "HueStream"
	VersionMajor = 0x01
	VersionMinor = 0x00

	HeaderSize = 16
	RecordSize = 9

	colorSpaceOffset = 14

	entryTypeLight = 0x00
	maxLightID     = math.MaxUint16
)

// ColorSpace selects how the three channels of a LightUpdate are interpreted and encoded.
type ColorSpace byte

const (
	RGB ColorSpace = 0x00
	XYB ColorSpace = 0x01
)

func (cs ColorSpace) String() string {
	switch cs {
	case RGB:
		return "rgb"
	case XYB:
		return "xyb"
	default:
		return fmt.Sprintf("colorspace(%#02x)", byte(cs))
	}
}

// ParseColorSpace accepts "rgb" or "xyb" in any case.
func ParseColorSpace(s string) (ColorSpace, error) {
	switch strings.ToLower(s) {
	case "rgb":
		return RGB, nil
	case "xyb":
		return XYB, nil
	}
	return 0, fmt.Errorf("unknown color space %q", s)
}

// LightUpdate is the target state of one light at a point in time.
// For RGB the channels are raw 16-bit values, for XYB they are x, y and brightness in [0, 1].
type LightUpdate struct {
	LightID  int
	Channels [3]float64
}

// RGBUpdate builds an update for the RGB color space.
func RGBUpdate(id uint16, r, g, b uint16) LightUpdate {
	return LightUpdate{LightID: int(id), Channels: [3]float64{float64(r), float64(g), float64(b)}}
}

// XYBUpdate builds an update for the XYB color space.
func XYBUpdate(id uint16, x, y, bri float32) LightUpdate {
	return LightUpdate{LightID: int(id), Channels: [3]float64{float64(x), float64(y), float64(bri)}}
}

// FrameSize returns the encoded size of a frame carrying n records.
func FrameSize(n int) int {
	return HeaderSize + RecordSize*n
}

// EncodeFrame builds the binary broadcast frame for updates in the given color space.
//
// Every record is 9 bytes: entry type, big-endian light ID and three 2-byte channels.
// RGB channels are big-endian uint16. XYB channels are big-endian IEEE 754 half-precision
// floats. An empty update list yields a header-only frame.
func EncodeFrame(updates []LightUpdate, cs ColorSpace) ([]byte, error) {
	if cs != RGB && cs != XYB {
		return nil, &EncodingError{Reason: fmt.Sprintf("unsupported color space %s", cs)}
	}

	frame := make([]byte, FrameSize(len(updates)))
	copy(frame, ProtocolTag)
	frame[9] = VersionMajor
	frame[10] = VersionMinor
	// frame[11] sequence id, frame[12:14] reserved: left zero
	frame[colorSpaceOffset] = byte(cs)

	for i, u := range updates {
		rec := frame[HeaderSize+i*RecordSize : HeaderSize+(i+1)*RecordSize]
		if u.LightID < 0 || u.LightID > maxLightID {
			return nil, &EncodingError{LightID: u.LightID, Reason: "light id does not fit in 16 bits"}
		}
		rec[0] = entryTypeLight
		binary.BigEndian.PutUint16(rec[1:3], uint16(u.LightID))

		for ch, v := range u.Channels {
			word, err := encodeChannel(v, cs)
			if err != nil {
				return nil, &EncodingError{LightID: u.LightID, Channel: ch + 1, Value: v, Reason: err.Error()}
			}
			binary.BigEndian.PutUint16(rec[3+ch*2:5+ch*2], word)
		}
	}

	return frame, nil
}

func encodeChannel(v float64, cs ColorSpace) (uint16, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	switch cs {
	case RGB:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("rgb channel must be an integer")
		}
		if v < 0 || v > math.MaxUint16 {
			return 0, fmt.Errorf("rgb channel out of range [0, 65535]")
		}
		return uint16(v), nil
	default:
		if v < 0 || v > 1 {
			return 0, fmt.Errorf("xyb channel out of range [0, 1]")
		}
		return float16.Fromfloat32(float32(v)).Bits(), nil
	}
}
