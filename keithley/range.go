package keithley

import (
	"fmt"
	"strconv"
)

// Range is the measurement range selector: index 0 is auto-ranging,
// 1..10 are fixed full scales from 20 pA to 20 mA. The engineering
// numeral is sent verbatim in the range directive, the instrument's
// numeric parser accepts it as-is.
type Range uint8

const RangeAuto Range = 0

const RangeCount = 11

var rangeNumerals = [RangeCount]string{
	"auto",
	"20e-12", "200e-12",
	"2e-9", "20e-9", "200e-9",
	"2e-6", "20e-6", "200e-6",
	"2e-3", "20e-3",
}

func (r Range) Valid() bool { return int(r) < RangeCount }

func (r Range) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Range(%d)", uint8(r))
	}
	return rangeNumerals[r]
}

func (r Range) directive() string {
	if r == RangeAuto {
		return cmdRangeAuto
	}
	return "SENS:CURR:RANG " + rangeNumerals[r]
}

// RangeFromString accepts either the label ("auto", "200e-9") or the
// numeric index ("0".."10").
func RangeFromString(s string) (Range, error) {
	for i, label := range rangeNumerals {
		if s == label {
			return Range(i), nil
		}
	}
	if idx, err := strconv.Atoi(s); err == nil && idx >= 0 && idx < RangeCount {
		return Range(idx), nil
	}
	return 0, ValidationError{Prop: "range", Value: s, Reason: "unknown range label or index"}
}
