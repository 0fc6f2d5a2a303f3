package bridge

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/KevinKickass/OpenShutterCore/internal/config"
)

// Port is the minimal serial transport the session needs. Satisfied by
// go.bug.st/serial ports and by the in-memory fake used in tests.
type Port interface {
	io.ReadWriteCloser
}

// PortOpener opens the transport for a connect attempt.
type PortOpener func(cfg config.SerialConfig) (Port, error)

// OpenSerialPort öffnet den echten USB-Stick (8N1, Baudrate aus der Config).
func OpenSerialPort(cfg config.SerialConfig) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	return port, nil
}
