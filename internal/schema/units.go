package schema

import (
	"fmt"
	"math"
)

// SIUnit is the physical unit of a numeric field. UnitNone means the field
// is dimensionless or not physical.
type SIUnit uint8

const (
	UnitNone SIUnit = iota
	UnitMeter
	UnitSecond
	UnitHertz
	UnitCelsius
	UnitKelvin
	UnitVolt
	UnitAmpere
	UnitDegree
	UnitPercent
)

var unitSymbols = [...]string{"", "m", "s", "Hz", "C°", "K", "V", "A", "°", "%"}

// String returns the unit symbol.
func (u SIUnit) String() string {
	if int(u) < len(unitSymbols) {
		return unitSymbols[u]
	}
	return fmt.Sprintf("SIUnit(%d)", uint8(u))
}

// ParseSIUnit parses a unit symbol such as "Hz". The empty string is UnitNone.
func ParseSIUnit(s string) (SIUnit, error) {
	for i, sym := range unitSymbols {
		if sym == s {
			return SIUnit(i), nil
		}
	}
	return UnitNone, fmt.Errorf("unknown SI unit %q", s)
}

// SIPrefix scales a unit by a power of ten.
type SIPrefix int8

// Prefixes are their decimal exponent.
const (
	PrefixNano  SIPrefix = -9
	PrefixMicro SIPrefix = -6
	PrefixMilli SIPrefix = -3
	PrefixDeci  SIPrefix = -1
	PrefixCenti SIPrefix = -2
	PrefixNone  SIPrefix = 0
	PrefixKilo  SIPrefix = 3
	PrefixMega  SIPrefix = 6
	PrefixGiga  SIPrefix = 9
)

var prefixSymbols = map[SIPrefix]string{
	PrefixNano:  "n",
	PrefixMicro: "u",
	PrefixMilli: "m",
	PrefixDeci:  "d",
	PrefixCenti: "c",
	PrefixNone:  "",
	PrefixKilo:  "k",
	PrefixMega:  "M",
	PrefixGiga:  "G",
}

// String returns the prefix symbol.
func (p SIPrefix) String() string {
	if s, ok := prefixSymbols[p]; ok {
		return s
	}
	return fmt.Sprintf("SIPrefix(%d)", int8(p))
}

// Valid reports whether p is one of the declared prefixes.
func (p SIPrefix) Valid() bool {
	_, ok := prefixSymbols[p]
	return ok
}

// Factor returns the multiplier the prefix stands for.
func (p SIPrefix) Factor() float64 {
	return math.Pow10(int(p))
}

// ParseSIPrefix parses a prefix symbol such as "k". The empty string is PrefixNone.
func ParseSIPrefix(s string) (SIPrefix, error) {
	for p, sym := range prefixSymbols {
		if sym == s {
			return p, nil
		}
	}
	return PrefixNone, fmt.Errorf("unknown SI prefix %q", s)
}

// Unit is the optional physical annotation of a field type.
type Unit struct {
	Unit   SIUnit
	Prefix SIPrefix
}

// String renders the prefixed symbol, e.g. "mK".
func (u Unit) String() string {
	if u.Unit == UnitNone {
		return ""
	}
	return u.Prefix.String() + u.Unit.String()
}
