package protocol

import "strings"

// DeviceMode is the boot mode the stick reports in its verification line.
type DeviceMode string

const (
	ModeBootloader DeviceMode = "bootloader" // B:0
	ModeInitial    DeviceMode = "initial"    // B:1
	ModeListening  DeviceMode = "listening"  // B:2, nie explizit gemeldet
	ModeUnknown    DeviceMode = "unknown"
)

// Message is one decoded line from the stick. Exactly one of the concrete
// types below is returned by Decode.
type Message interface {
	isMessage()
}

// DeviceVerification is the answer to !?, e.g. "RFTU_V20 F:20180510_DFBD B:1".
type DeviceVerification struct {
	Version string
	Mode    DeviceMode
}

// TransmitAck acknowledges a transmission (t1/t0). Informational only.
type TransmitAck struct {
	Raw string
}

// TransmitBusy (tE) means the stick could not transmit right now.
type TransmitBusy struct{}

// DeviceIDResponse is the answer to sr, carrying the stick's own 6-hex ID.
type DeviceIDResponse struct {
	DeviceID string
}

// PairingListResponse is an sl line announcing a device during pairing.
type PairingListResponse struct {
	DeviceID string
}

// DeviceEvent is an ss line relayed from a paired device.
//
// Format: ssXXYYYYYYZZZZCCPPRR
//
//	XX     = device enum (2 Zeichen)
//	YYYYYY = device ID (6 Zeichen)
//	ZZZZ   = message incrementor (ignoriert)
//	CC     = command (2 Zeichen)
//	PPRR   = padding + Signalstärke (ignoriert)
type DeviceEvent struct {
	DeviceEnum string
	DeviceID   string
	Command    string
}

// Unrecognized covers every line the decoder cannot classify. Callers are
// expected to drop it silently.
type Unrecognized struct {
	Raw string
}

func (DeviceVerification) isMessage()  {}
func (TransmitAck) isMessage()         {}
func (TransmitBusy) isMessage()        {}
func (DeviceIDResponse) isMessage()    {}
func (PairingListResponse) isMessage() {}
func (DeviceEvent) isMessage()         {}
func (Unrecognized) isMessage()        {}

// Decode classifies a single trimmed line. It is pure and stateless; no
// decode error ever escapes, a line that fits no rule becomes Unrecognized.
// Order matters, the first matching rule wins.
func Decode(line string) Message {
	switch {
	case strings.HasPrefix(line, "RFTU_"):
		return decodeVerification(line)

	case line == "t1" || line == "t0":
		return TransmitAck{Raw: line}

	case line == "tE":
		return TransmitBusy{}

	case strings.HasPrefix(line, "sr") && len(line) >= 8:
		return DeviceIDResponse{DeviceID: line[2:8]}

	case strings.HasPrefix(line, "sl") && len(line) >= 8:
		// 2 Zeichen Präfix + 4 Zeichen Adress-Platzhalter überspringen,
		// dann 6 Hex-Zeichen Geräte-ID.
		end := 12
		if len(line) < end {
			end = len(line)
		}
		return PairingListResponse{DeviceID: line[6:end]}

	case strings.HasPrefix(line, "ss") && len(line) >= 18:
		return DeviceEvent{
			DeviceEnum: line[2:4],
			DeviceID:   line[4:10],
			Command:    line[14:16],
		}

	default:
		return Unrecognized{Raw: line}
	}
}

func decodeVerification(line string) DeviceVerification {
	parts := strings.Fields(line)

	msg := DeviceVerification{Mode: ModeInitial}
	if len(parts) > 0 {
		msg.Version = parts[0]
	}

	for _, part := range parts {
		if !strings.HasPrefix(part, "B:") {
			continue
		}
		switch part[2:] {
		case "0":
			msg.Mode = ModeBootloader
		case "1":
			msg.Mode = ModeInitial
		default:
			msg.Mode = ModeUnknown
		}
		break
	}

	return msg
}
