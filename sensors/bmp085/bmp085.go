package bmp085

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrCalibration   = errors.New("bmp085: implausible calibration coefficients, check connection")
	ErrNoTemperature = errors.New("bmp085: pressure requested before any temperature reading")
	ErrCompensation  = errors.New("bmp085: compensation produced a non-finite value")
	ErrOversampling  = errors.New("bmp085: oversampling setting must be between 0 and 3")
)

// Bus is the register level access the driver needs. embd.I2CBus satisfies it.
type Bus interface {
	ReadByteFromReg(addr, reg byte) (byte, error)
	WriteByteToReg(addr, reg, value byte) error
}

// BusError reports a failed bus transaction. The driver never retries, that is up to the transport or the caller.
type BusError struct {
	Op  string // "read" or "write"
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bmp085: %s register 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Opts holds the configuration of a Dev.
type Opts struct {
	Oversampling Oversampling
	// Sleep waits for a conversion to complete. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOpts is the configuration used when New is given nil opts.
var DefaultOpts = Opts{
	Oversampling: UltraLowPower,
	Sleep:        time.Sleep,
}

// Reading is a compensated measurement.
type Reading struct {
	Temperature float64 // degrees C
	Pressure    float64 // Pa
}

// Dev is a handle to a BMP085. It owns the calibration read at initialization and the B5 value of the last
// temperature conversion.
//
// A Dev is not safe for concurrent use; callers sharing one must serialize access. Bus transactions have no
// timeout, a hanging bus blocks the caller.
type Dev struct {
	bus   Bus
	addr  byte
	opts  Opts
	cal   Calibration
	b5    float64
	hasB5 bool
}

// New reads and validates the calibration of the sensor at Address on bus.
func New(bus Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Oversampling > UltraHighResolution {
		return nil, ErrOversampling
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}

	cal, err := LoadCalibration(bus, Address)
	if err != nil {
		return nil, err
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Dev{bus: bus, addr: Address, opts: o, cal: cal}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("BMP085{addr:0x%02X, oss:%d}", d.addr, d.opts.Oversampling)
}

// Calibration returns the coefficients read at initialization.
func (d *Dev) Calibration() Calibration {
	return d.cal
}

// Oversampling returns the pressure oversampling setting.
func (d *Dev) Oversampling() Oversampling {
	return d.opts.Oversampling
}

// ReadTemperature runs a temperature conversion and returns degrees C. The B5 value for the next pressure
// conversion is only updated when the whole read succeeds.
func (d *Dev) ReadTemperature() (float64, error) {
	ut, err := ReadRawTemperature(d.bus, d.addr, d.opts.Sleep)
	if err != nil {
		return 0, err
	}
	t, b5 := d.cal.Temperature(ut)
	if !finite(t) {
		return 0, ErrCompensation
	}
	d.b5, d.hasB5 = b5, true
	return t, nil
}

// ReadPressure runs a pressure conversion and returns Pa, compensated with the B5 of the most recent
// ReadTemperature. Use Sense to get both in the right order.
func (d *Dev) ReadPressure() (float64, error) {
	if !d.hasB5 {
		return 0, ErrNoTemperature
	}
	up, err := ReadRawPressure(d.bus, d.addr, d.opts.Oversampling, d.opts.Sleep)
	if err != nil {
		return 0, err
	}
	p := d.cal.Pressure(up, d.b5, d.opts.Oversampling)
	if !finite(p) {
		return 0, ErrCompensation
	}
	return p, nil
}

// Sense reads temperature and then pressure.
func (d *Dev) Sense() (Reading, error) {
	t, err := d.ReadTemperature()
	if err != nil {
		return Reading{}, err
	}
	p, err := d.ReadPressure()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: t, Pressure: p}, nil
}

// ConversionTime is how long to wait between starting a pressure conversion and reading the result.
func (oss Oversampling) ConversionTime() time.Duration {
	switch oss {
	case Standard:
		return 8 * time.Millisecond
	case HighResolution:
		return 14 * time.Millisecond
	case UltraHighResolution:
		return 26 * time.Millisecond
	default:
		return 5 * time.Millisecond
	}
}

const temperatureConversionTime = 5 * time.Millisecond

// ReadRawTemperature starts a temperature conversion on the device at addr and returns the uncompensated result.
func ReadRawTemperature(bus Bus, addr byte, sleep func(time.Duration)) (uint16, error) {
	if err := writeRegister(bus, addr, RegCtrlMeas, CmdTemperature); err != nil {
		return 0, err
	}
	sleep(temperatureConversionTime)

	return readWord(bus, addr, RegOutMSB)
}

// ReadRawPressure starts a pressure conversion with oversampling oss on the device at addr and returns the
// uncompensated result aligned to the resolution of oss.
func ReadRawPressure(bus Bus, addr byte, oss Oversampling, sleep func(time.Duration)) (uint32, error) {
	if err := writeRegister(bus, addr, RegCtrlMeas, CmdPressure+byte(oss)<<6); err != nil {
		return 0, err
	}
	sleep(oss.ConversionTime())

	var data [3]byte
	for i, reg := range []byte{RegOutMSB, RegOutLSB, RegOutXLSB} {
		b, err := readRegister(bus, addr, reg)
		if err != nil {
			return 0, err
		}
		data[i] = b
	}
	up := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	return up >> (8 - uint(oss)), nil
}

func readWord(bus Bus, addr, reg byte) (uint16, error) {
	msb, err := readRegister(bus, addr, reg)
	if err != nil {
		return 0, err
	}
	lsb, err := readRegister(bus, addr, reg+1)
	if err != nil {
		return 0, err
	}
	return uint16(msb)<<8 | uint16(lsb), nil
}

func readRegister(bus Bus, addr, reg byte) (byte, error) {
	b, err := bus.ReadByteFromReg(addr, reg)
	if err != nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: err}
	}
	return b, nil
}

func writeRegister(bus Bus, addr, reg, value byte) error {
	if err := bus.WriteByteToReg(addr, reg, value); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
