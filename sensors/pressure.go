// Package sensors provides the daemon's interface to the barometric pressure sensor.
package sensors

// PressureReader provides an interface to a sensor reading pressure and temperature, like the BMP085 or BMP180.
type PressureReader interface {
	Temperature() (temp float64, tempError error) // Temperature returns the temperature in degrees C.
	Pressure() (press float64, pressError error)  // Pressure returns the atmospheric pressure in Pa.
	Close()                                       // Close stops reading from the sensor.
}
