package sensors

import (
	"errors"
	"sync"
	"time"

	"github.com/b3nn0/bmp085/sensors/bmp085"
	"github.com/kidoman/embd"
)

var errBMP085 = errors.New("BMP085 Error: BMP085 is not running")

// BMP085 polls a BMP085 in the background and implements the PressureReader interface.
type BMP085 struct {
	sensor *bmp085.Dev

	mu       sync.Mutex
	temp     float64
	press    float64
	tempErr  error
	pressErr error
	running  bool
	done     chan struct{}
}

// NewBMP085 reads the calibration of the BMP085 on the I2C bus and begins reading it every freq.
func NewBMP085(i2cbus *embd.I2CBus, oss bmp085.Oversampling, freq time.Duration) (*BMP085, error) {
	dev, err := bmp085.New(*i2cbus, &bmp085.Opts{Oversampling: oss, Sleep: time.Sleep})
	if err != nil {
		return nil, err
	}
	return startBMP085(dev, freq), nil
}

func startBMP085(dev *bmp085.Dev, freq time.Duration) *BMP085 {
	bmp := &BMP085{sensor: dev, running: true, done: make(chan struct{})}
	bmp.sense()
	go bmp.run(freq)
	return bmp
}

func (bmp *BMP085) run(freq time.Duration) {
	clock := time.NewTicker(freq)
	defer clock.Stop()
	for {
		select {
		case <-bmp.done:
			return
		case <-clock.C:
			bmp.sense()
		}
	}
}

// sense takes one temperature and one pressure measurement. Pressure is compensated with the temperature just
// read, so a failed temperature conversion fails the pressure too.
func (bmp *BMP085) sense() {
	temp, tempErr := bmp.sensor.ReadTemperature()
	var press float64
	pressErr := tempErr
	if tempErr == nil {
		press, pressErr = bmp.sensor.ReadPressure()
	}

	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	bmp.tempErr, bmp.pressErr = tempErr, pressErr
	if tempErr == nil {
		bmp.temp = temp
	}
	if pressErr == nil {
		bmp.press = press
	}
}

// Temperature returns the last temperature in degrees C measured by the BMP085, or the error of the last
// temperature read.
func (bmp *BMP085) Temperature() (float64, error) {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if !bmp.running {
		return 0, errBMP085
	}
	if bmp.tempErr != nil {
		return 0, bmp.tempErr
	}
	return bmp.temp, nil
}

// Pressure returns the last pressure in Pa measured by the BMP085, or the error of the last pressure read.
func (bmp *BMP085) Pressure() (float64, error) {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if !bmp.running {
		return 0, errBMP085
	}
	if bmp.pressErr != nil {
		return 0, bmp.pressErr
	}
	return bmp.press, nil
}

// Calibration returns the coefficients read from the sensor when it was opened.
func (bmp *BMP085) Calibration() bmp085.Calibration {
	return bmp.sensor.Calibration()
}

// Close stops the measurements of the BMP085. The bus is left open.
func (bmp *BMP085) Close() {
	bmp.mu.Lock()
	defer bmp.mu.Unlock()
	if bmp.running {
		bmp.running = false
		close(bmp.done)
	}
}
