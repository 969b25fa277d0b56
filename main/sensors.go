package main

import (
	"errors"
	"log"
	"time"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"

	"github.com/b3nn0/bmp085/common"
	"github.com/b3nn0/bmp085/sensors"
	"github.com/b3nn0/bmp085/sensors/bmp085"
)

const (
	numRetries       uint8 = 5
	sensorRetryDelay       = 4 * time.Second
)

var (
	i2cbus           embd.I2CBus
	myPressureReader sensors.PressureReader
	myBroadcaster    *readingBroadcaster

	// sensorRestart makes tempAndPressureSender close the sensor so that pollSensors reopens it.
	sensorRestart = make(chan struct{}, 1)
)

type readingMessage struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature_c"`
	Pressure    float64   `json:"pressure_pa"`
}

func initI2CSensors() {
	s := currentSettings()
	if err := common.CheckI2CAccess(s.I2C_Bus); err != nil {
		log.Printf("BMP085 Error: %s\n", err.Error())
		if !common.IsRunningAsRoot() {
			log.Printf("BMP085 Info: not running as root, make sure this user may open %s\n", common.I2CDevicePath(s.I2C_Bus))
		}
	}
	i2cbus = embd.NewI2CBus(s.I2C_Bus)

	go pollSensors()
}

func pollSensors() {
	timer := time.NewTicker(sensorRetryDelay)
	for {
		// If it's not currently connected, try connecting to pressure sensor
		if currentSettings().BMP_Sensor_Enabled && !isBMPConnected() {
			log.Println("BMP085 Info: attempting pressure sensor connection.")
			if initPressureSensor() {
				setBMPConnected(true)
				go tempAndPressureSender(myPressureReader)
			}
		}
		<-timer.C
	}
}

func initPressureSensor() (ok bool) {
	s := currentSettings()
	bmp, err := sensors.NewBMP085(&i2cbus, bmp085.Oversampling(s.Oversampling), s.pollInterval())
	if err != nil {
		var busErr *bmp085.BusError
		if errors.As(err, &busErr) {
			log.Printf("BMP085 Info: no sensor answering on %s: %s\n", common.I2CDevicePath(s.I2C_Bus), err.Error())
		} else {
			log.Printf("BMP085 Error: couldn't initialize BMP085: %s\n", err.Error())
		}
		return false
	}
	log.Printf("BMP085 Info: Successfully initialized BMP085, calibration %+v\n", bmp.Calibration())
	myPressureReader = bmp
	return true
}

// readSensor reads temperature and pressure from reader, counting each failure.
func readSensor(reader sensors.PressureReader) (bmp085.Reading, error) {
	temp, err := reader.Temperature()
	if err != nil {
		countReadError("temperature")
		return bmp085.Reading{}, err
	}
	press, err := reader.Pressure()
	if err != nil {
		countReadError("pressure")
		return bmp085.Reading{}, err
	}
	return bmp085.Reading{Temperature: temp, Pressure: press}, nil
}

// recordReading publishes a reading to the status page, metrics, datalog and websocket clients.
func recordReading(t time.Time, r bmp085.Reading) {
	updateStatus(t, r)
	updateMetrics(r)
	logReading(t, r)
	if myBroadcaster != nil {
		myBroadcaster.Broadcast(readingMessage{Time: t, Temperature: r.Temperature, Pressure: r.Pressure})
	}
	logDbg("BMP085 Info: %.1f C, %.0f Pa\n", r.Temperature, r.Pressure)
}

// reloadSettings rereads the settings file. A connected sensor is reopened so that a new oversampling or poll
// interval takes effect. Bus and listen address changes need a restart.
func reloadSettings() {
	readSettings()
	if isBMPConnected() {
		select {
		case sensorRestart <- struct{}{}:
		default:
		}
	}
}

// tempAndPressureSender reads the sensor until it fails more than numRetries times in a row or the settings are
// reloaded, then closes it so that pollSensors can reconnect.
func tempAndPressureSender(reader sensors.PressureReader) {
	var failnum uint8

	timer := time.NewTicker(currentSettings().pollInterval())
	defer timer.Stop()
loop:
	for currentSettings().BMP_Sensor_Enabled {
		select {
		case <-sensorRestart:
			log.Println("BMP085 Info: settings reloaded, reopening BMP085.")
			break loop
		case <-timer.C:
		}

		r, err := readSensor(reader)
		if err != nil {
			failnum++
			log.Printf("BMP085 Error: Couldn't read from sensor: %s", err)
			if failnum > numRetries {
				log.Printf("BMP085 Error: Couldn't read from sensor %d times, closing BMP085: %s", failnum, err)
				break
			}
			continue
		}
		failnum = 0
		recordReading(time.Now(), r)
	}
	reader.Close()
	setBMPConnected(false) // Try reconnecting a little later
}
