package pcapng

import (
	"math"
	"math/bits"
	"time"
)

const (
	// DefaultTSResolution is if_tsresol when the option is absent: microseconds.
	DefaultTSResolution uint8 = 6

	tsresolPowerOf2 = 0x80
	maxPow2Exponent = 63
	maxPow10Exp     = 19

	nanosPerSecond = 1_000_000_000
)

// Precision is the number of fractional second digits worth displaying.
type Precision int

// PrecisionPerPacket marks a file whose interfaces disagree on precision.
const PrecisionPerPacket Precision = -1

// TimeUnitsPerSecond decodes an if_tsresol value.
func TimeUnitsPerSecond(tsresol uint8) (uint64, error) {
	exp := uint64(tsresol &^ tsresolPowerOf2)
	if tsresol&tsresolPowerOf2 != 0 {
		if exp > maxPow2Exponent {
			return 0, unsupportedf("time resolution 2^-%d", exp)
		}
		return 1 << exp, nil
	}
	if exp > maxPow10Exp {
		return 0, unsupportedf("time resolution 10^-%d", exp)
	}
	ups := uint64(1)
	for ; exp > 0; exp-- {
		ups *= 10
	}
	return ups, nil
}

// PrecisionFor returns the decimal digits d, at most 9, with 10^d <= ups.
func PrecisionFor(ups uint64) Precision {
	p := Precision(0)
	for scale := uint64(10); p < 9 && scale <= ups; scale *= 10 {
		p++
	}
	return p
}

// UnitsToTime converts a timestamp counted in 1/ups seconds since the epoch
// plus offset seconds.
func UnitsToTime(units, ups uint64, offset int64) time.Time {
	if ups == 0 {
		ups = 1_000_000
	}
	secs := units / ups
	rem := units % ups

	var nsec uint64
	if rem <= math.MaxUint64/nanosPerSecond {
		nsec = rem * nanosPerSecond / ups
	} else {
		hi, lo := bits.Mul64(rem, nanosPerSecond)
		nsec, _ = bits.Div64(hi, lo, ups)
	}
	return time.Unix(int64(secs)+offset, int64(nsec)).UTC()
}

// TimeToUnits is the inverse of UnitsToTime, truncating to the resolution.
func TimeToUnits(t time.Time, ups uint64, offset int64) (uint64, error) {
	secs := t.Unix() - offset
	if secs < 0 {
		return 0, unsupportedf("timestamp %s precedes the epoch of the interface", t)
	}
	hi, whole := bits.Mul64(uint64(secs), ups)
	if hi != 0 {
		return 0, unsupportedf("timestamp %s overflows 64-bit units of 1/%d s", t, ups)
	}
	fh, fl := bits.Mul64(uint64(t.Nanosecond()), ups)
	frac, _ := bits.Div64(fh, fl, nanosPerSecond)
	units, carry := bits.Add64(whole, frac, 0)
	if carry != 0 {
		return 0, unsupportedf("timestamp %s overflows 64-bit units of 1/%d s", t, ups)
	}
	return units, nil
}

func splitUnits(units uint64) (hi, lo uint32) {
	return uint32(units >> 32), uint32(units)
}

func joinUnits(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}
