package protocol

import "time"

// Funk-Kommandos an die Motoren (2 Hex-Zeichen auf der Leitung)
const (
	CmdStop             = "00" // 0x00 - Stop
	CmdUp               = "01" // 0x01 - Hoch
	CmdDown             = "02" // 0x02 - Runter
	CmdAllowPairing     = "40" // 0x40 - Motor lauscht auf neue Fernbedienung
	CmdManualUp         = "41" // 0x41 - Hoch solange Taste gehalten
	CmdManualDown       = "42" // 0x42 - Runter solange Taste gehalten
	CmdPair             = "60" // 0x60 - Pairing / Drehrichtung wechseln
	CmdSetUpperEndpoint = "61" // 0x61 - Oberen Endpunkt setzen
	CmdSetLowerEndpoint = "62" // 0x62 - Unteren Endpunkt setzen
)

// Motor events reported by the stick. Same code space as the commands.
const (
	EventStopped           = "00"
	EventStartedMovingUp   = "01"
	EventStartedMovingDown = "02"
)

// Fenstergriff-Sensoren melden ihre Stellung über eigene Statuscodes.
const (
	SensorWindowHandle0   = "1A"
	SensorWindowHandle90  = "1B"
	SensorWindowHandle180 = "3B"
)

// System commands, only understood by the stick itself (prefixed with !).
const (
	CmdVerify          = "!?" // Version und aktuellen Modus abfragen
	CmdEnterBootloader = "!B" // B:0 Bootloader-Modus
	CmdEnterInitial    = "!G" // B:1 Initial-Modus
	CmdGetTransceiver  = "!F" // Transceiver-Info (Si446x)
	CmdReboot          = "!R" // Neustart (nur in B:0)
	CmdEchoOn          = "!E1"
	CmdEchoOff         = "!E0"
)

// Lowercase stick commands. Sending any of these in initial mode also
// switches the stick into listening mode (B:2).
const (
	CmdLEDOn       = "so+"
	CmdLEDOff      = "so-"
	CmdGetDeviceID = "sr"
	CmdStopPairing = "sp" // Parameter P abfragen, beendet den Pairing-Modus
)

// CmdTransmit is the prefix of all device-addressed transmissions.
const CmdTransmit = "ss"

const (
	// VerifyTimeout bounds the wait for the !? response.
	VerifyTimeout = 5 * time.Second

	// PairingTimeout bounds the wait for a device to announce itself.
	PairingTimeout = 120 * time.Second

	// PairingDeviceEnumStart is the first enumerator handed out to new devices.
	PairingDeviceEnumStart = 0x10
)
