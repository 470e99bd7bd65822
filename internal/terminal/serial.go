package terminal

import (
	"fmt"

	"github.com/tarm/serial"
)

// OpenSerial opens a serial device such as /dev/ttyACM0 at baud.
// Reads are left blocking; the port's pump goroutine absorbs the wait.
func OpenSerial(name string, baud int) (*Port, error) {
	sp, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewPort(sp, sp, sp), nil
}
