// Package units converts caller units (millimeters, degrees) to host units
// (feet, radians) and back.
//
// Host length unit is the foot: 1 ft = 304.8 mm exactly. Areas scale by the
// square of that factor and volumes by the cube. Angles are radians on the host.
//
// Conversion is only guaranteed to be meaningful in the caller-to-host
// direction: host replies may already carry formatted or host-native values.
package units

import (
	"fmt"
	"math"
	"strings"
)

// MillimetersPerFoot is the exact length factor between caller and host units.
const MillimetersPerFoot = 304.8

// Kind is the semantic kind of a scalar value.
type Kind string

// Unit kinds.
const (
	Length Kind = "length"
	Angle  Kind = "angle"
	Area   Kind = "area"
	Volume Kind = "volume"
)

var factors = map[Kind]float64{
	Length: MillimetersPerFoot,
	Area:   MillimetersPerFoot * MillimetersPerFoot,
	Volume: MillimetersPerFoot * MillimetersPerFoot * MillimetersPerFoot,
	Angle:  180 / math.Pi,
}

// Factor returns how many caller units make one host unit for kind.
// The second result is false for kinds with no conversion.
func Factor(kind Kind) (float64, bool) {
	f, ok := factors[kind]
	return f, ok
}

// ParseKind normalizes a kind name. Unknown names are returned as-is, which
// makes every conversion on them a passthrough.
func ParseKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether kind has a conversion factor.
func (k Kind) Known() bool {
	_, ok := factors[k]
	return ok
}

// ToHostLength converts millimeters to feet.
func ToHostLength(mm float64) float64 { return mm / MillimetersPerFoot }

// FromHostLength converts feet to millimeters.
func FromHostLength(ft float64) float64 { return ft * MillimetersPerFoot }

// ToHostAngle converts degrees to radians.
func ToHostAngle(deg float64) float64 { return deg * math.Pi / 180 }

// FromHostAngle converts radians to degrees.
func FromHostAngle(rad float64) float64 { return rad * 180 / math.Pi }

// ToHostArea converts square millimeters to square feet.
func ToHostArea(mm2 float64) float64 { return mm2 / factors[Area] }

// ToHostVolume converts cubic millimeters to cubic feet.
func ToHostVolume(mm3 float64) float64 { return mm3 / factors[Volume] }

// ToHostScalar converts value according to kind.
// An unknown kind returns value unchanged: it is never zeroed.
func ToHostScalar(value float64, kind Kind) float64 {
	switch kind {
	case Angle:
		return ToHostAngle(value)
	case Length:
		return ToHostLength(value)
	}
	f, ok := factors[kind]
	if !ok {
		return value
	}
	return value / f
}

// FromHostScalar is the inverse of ToHostScalar. Unknown kinds pass through.
func FromHostScalar(value float64, kind Kind) float64 {
	switch kind {
	case Angle:
		return FromHostAngle(value)
	case Length:
		return FromHostLength(value)
	}
	f, ok := factors[kind]
	if !ok {
		return value
	}
	return value * f
}

// ToHostValue converts an untyped parameter value. Numbers are scaled by kind;
// any other value (strings, booleans, element references) passes through.
func ToHostValue(value any, kind Kind) any {
	switch v := value.(type) {
	case float64:
		return ToHostScalar(v, kind)
	case float32:
		return ToHostScalar(float64(v), kind)
	case int:
		if !kind.Known() {
			return v
		}
		return ToHostScalar(float64(v), kind)
	case int64:
		if !kind.Known() {
			return v
		}
		return ToHostScalar(float64(v), kind)
	default:
		return value
	}
}

// Point is a 3D coordinate.
type Point struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
}

// ToHostPoint converts a point in millimeters to feet.
func ToHostPoint(p Point) Point {
	return Point{X: ToHostLength(p.X), Y: ToHostLength(p.Y), Z: ToHostLength(p.Z)}
}

// FromHostPoint converts a point in feet to millimeters.
func FromHostPoint(p Point) Point {
	return Point{X: FromHostLength(p.X), Y: FromHostLength(p.Y), Z: FromHostLength(p.Z)}
}
