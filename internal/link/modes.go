package link

import "strconv"

// ArduCopter custom_mode numbers
var copterModes = map[uint32]string{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	11: "DRIFT",
	13: "SPORT",
	14: "FLIP",
	15: "AUTOTUNE",
	16: "POSHOLD",
	17: "BRAKE",
	18: "THROW",
	19: "AVOID_ADSB",
	20: "GUIDED_NOGPS",
	21: "SMART_RTL",
}

var copterModeNumbers = func() map[string]uint32 {
	m := make(map[string]uint32, len(copterModes))
	for n, name := range copterModes {
		m[name] = n
	}
	return m
}()

// ModeName returns the ArduCopter mode name for a custom_mode value
func ModeName(customMode uint32) string {
	if name, ok := copterModes[customMode]; ok {
		return name
	}
	return "MODE_" + strconv.FormatUint(uint64(customMode), 10)
}

// ModeNumber returns the custom_mode value for an ArduCopter mode name
func ModeNumber(name string) (uint32, bool) {
	n, ok := copterModeNumbers[name]
	return n, ok
}
