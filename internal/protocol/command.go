package protocol

import (
	"fmt"
	"regexp"
)

var enumPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}$`)

// DeviceCommand baut die Übertragung an einen Motor.
//
// Format: ssXX9AAZZZZ
//
//	XX   = device enum
//	9    = Anzahl Wiederholungen auf der Funkseite
//	AA   = Kommando
//	ZZZZ = Padding
func DeviceCommand(deviceEnum, cmd string) (string, error) {
	if !enumPattern.MatchString(deviceEnum) {
		return "", fmt.Errorf("invalid device enum %q", deviceEnum)
	}
	if len(cmd) != 2 {
		return "", fmt.Errorf("invalid device command %q", cmd)
	}
	return fmt.Sprintf("%s%s9%s0000", CmdTransmit, deviceEnum, cmd), nil
}

// BlindCommand validates and builds a blind control transmission. Only
// stop/up/down are accepted here; everything else is a caller bug.
func BlindCommand(deviceEnum, action string) (string, error) {
	switch action {
	case CmdStop, CmdUp, CmdDown:
		return DeviceCommand(deviceEnum, action)
	default:
		return "", fmt.Errorf("invalid blind action %q", action)
	}
}

// PairCommand builds the transmission that pairs the stick with a motor
// under the given enumerator. Note the different shape: no repeat marker,
// five padding characters.
func PairCommand(deviceEnum string) (string, error) {
	if !enumPattern.MatchString(deviceEnum) {
		return "", fmt.Errorf("invalid device enum %q", deviceEnum)
	}
	return fmt.Sprintf("%s%s%s00000", CmdTransmit, deviceEnum, CmdPair), nil
}

// LEDBlinkCommand returns so1..so9 for count 1..9.
func LEDBlinkCommand(count int) (string, error) {
	if count < 1 || count > 9 {
		return "", fmt.Errorf("invalid blink count %d, must be 1-9", count)
	}
	return fmt.Sprintf("so%d", count), nil
}
