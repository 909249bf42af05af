package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIO attribute files exposed by the kernel dht11 driver, in milli-units.
const (
	iioTempFile     = "in_temp_input"
	iioHumidityFile = "in_humidityrelative_input"
)

// IIODHT reads a DHT11 through the kernel's IIO dht11 driver
// (dtoverlay=dht11). The driver caches a measurement for about two seconds
// and re-measures on the first attribute read after that, so the two
// attributes can come from different measurements. It fails with EIO or
// ETIMEDOUT when the sensor handshake is missed, which is reported as
// ErrTransient.
type IIODHT struct {
	Dir string

	readFile func(name string) ([]byte, error) // nil means os.ReadFile
}

// NewIIODHT checks that the device directory exists.
func NewIIODHT(dir string) (*IIODHT, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open dht device: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open dht device: %s is not a directory", dir)
	}
	return &IIODHT{Dir: dir}, nil
}

// Read returns humidity and temperature. If either attribute fails the whole
// read fails; partial results are never returned. Temperature is read again
// after humidity: a different value means the driver re-measured between
// the reads, and the pair is rejected as ErrTransient.
func (d *IIODHT) Read() (Environment, error) {
	temp, err := d.readMilli(iioTempFile)
	if err != nil {
		return Environment{}, err
	}
	hum, err := d.readMilli(iioHumidityFile)
	if err != nil {
		return Environment{}, err
	}
	again, err := d.readMilli(iioTempFile)
	if err != nil {
		return Environment{}, err
	}
	if again != temp {
		return Environment{}, fmt.Errorf("dht measurement changed during read (%v then %v): %w", temp, again, ErrTransient)
	}
	return Environment{Humidity: hum, Temperature: temp}, nil
}

func (d *IIODHT) readMilli(name string) (float64, error) {
	read := d.readFile
	if read == nil {
		read = os.ReadFile
	}
	raw, err := read(filepath.Join(d.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("read %s: %w", name, err)
		}
		return 0, fmt.Errorf("read %s: %v: %w", name, err, ErrTransient)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %v: %w", name, err, ErrTransient)
	}
	return float64(v) / 1000, nil
}
