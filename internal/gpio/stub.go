//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Open returns an error on non-Linux platforms.
func Open(chipName string, pins Pins, dhtDir string, echoTimeout time.Duration, log logrus.FieldLogger) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
