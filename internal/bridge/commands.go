package bridge

import (
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenShutterCore/internal/protocol"
)

// Device-facing and stick-local command surface. Invalid arguments are
// rejected before any I/O happens: logged, nothing sent.

// ControlBlind transmits stop/up/down to the motor behind the enumerator.
func (s *Session) ControlBlind(deviceEnum, action string) {
	s.sendDeviceCommand(deviceEnum, action, "blind control")
}

// SetUpperEndpoint stores the current position as the motor's upper limit.
func (s *Session) SetUpperEndpoint(deviceEnum string) {
	s.sendDeviceCommand(deviceEnum, protocol.CmdSetUpperEndpoint, "set upper endpoint")
}

// SetLowerEndpoint stores the current position as the motor's lower limit.
func (s *Session) SetLowerEndpoint(deviceEnum string) {
	s.sendDeviceCommand(deviceEnum, protocol.CmdSetLowerEndpoint, "set lower endpoint")
}

// AllowPairingOnDevice makes the motor listen for a new remote's ID.
func (s *Session) AllowPairingOnDevice(deviceEnum string) {
	s.sendDeviceCommand(deviceEnum, protocol.CmdAllowPairing, "allow pairing")
}

// ManualUp moves the blind up as long as the button is held.
func (s *Session) ManualUp(deviceEnum string) {
	s.sendDeviceCommand(deviceEnum, protocol.CmdManualUp, "manual up")
}

// ManualDown moves the blind down as long as the button is held.
func (s *Session) ManualDown(deviceEnum string) {
	s.sendDeviceCommand(deviceEnum, protocol.CmdManualDown, "manual down")
}

func (s *Session) sendDeviceCommand(deviceEnum, cmd, what string) {
	var (
		command string
		err     error
	)
	if cmd == protocol.CmdStop || cmd == protocol.CmdUp || cmd == protocol.CmdDown {
		command, err = protocol.BlindCommand(deviceEnum, cmd)
	} else {
		command, err = protocol.DeviceCommand(deviceEnum, cmd)
	}
	if err != nil {
		s.logger.Error("Rejected device command",
			zap.String("what", what),
			zap.String("device_enum", deviceEnum),
			zap.Error(err))
		return
	}

	s.logger.Debug("Sending device command",
		zap.String("what", what),
		zap.String("command", command))
	s.Send(command)
}

// LEDOn schaltet die Stick-LED an.
func (s *Session) LEDOn() {
	s.Send(protocol.CmdLEDOn)
}

// LEDOff schaltet die Stick-LED aus.
func (s *Session) LEDOff() {
	s.Send(protocol.CmdLEDOff)
}

// LEDBlink blinks the LED count times (1-9).
func (s *Session) LEDBlink(count int) {
	command, err := protocol.LEDBlinkCommand(count)
	if err != nil {
		s.logger.Error("Rejected LED blink", zap.Int("count", count), zap.Error(err))
		return
	}
	s.Send(command)
}

// EchoOn enables local echo on the stick.
func (s *Session) EchoOn() {
	s.Send(protocol.CmdEchoOn)
}

// EchoOff disables local echo on the stick.
func (s *Session) EchoOff() {
	s.Send(protocol.CmdEchoOff)
}

// EnterBootloaderMode switches the stick into B:0.
func (s *Session) EnterBootloaderMode() {
	s.Send(protocol.CmdEnterBootloader)
}

// EnterInitialMode switches the stick into B:1.
func (s *Session) EnterInitialMode() {
	s.Send(protocol.CmdEnterInitial)
}

// RebootStick reboots the stick. Only honored in bootloader mode.
func (s *Session) RebootStick() {
	s.Send(protocol.CmdReboot)
}
