// Package bmp085 provides a driver for Bosch's BMP085 and BMP180 digital temperature & pressure sensors.
// The datasheet can be found here: https://www.sparkfun.com/datasheets/Components/General/BST-BMP085-DS000-05.pdf
package bmp085

const Address byte = 0x77 // fixed I2C address

// Calibration coefficient registers. Each coefficient is a big endian word, the LSB lives at MSB+1.
const (
	RegAC1 byte = 0xAA
	RegAC2 byte = 0xAC
	RegAC3 byte = 0xAE
	RegAC4 byte = 0xB0
	RegAC5 byte = 0xB2
	RegAC6 byte = 0xB4
	RegB1  byte = 0xB6
	RegB2  byte = 0xB8
	RegMB  byte = 0xBA
	RegMC  byte = 0xBC
	RegMD  byte = 0xBE
)

const (
	RegCtrlMeas byte = 0xF4 // measurement control register
	RegOutMSB   byte = 0xF6 // start of conversion result registers
	RegOutLSB   byte = 0xF7
	RegOutXLSB  byte = 0xF8 // only used by pressure conversions
)

const (
	CmdTemperature byte = 0x2E // start a temperature conversion
	CmdPressure    byte = 0x34 // start a pressure conversion, oversampling goes in bits 6-7
)

// Oversampling selects the resolution of a pressure conversion. Higher settings take more internal samples, which
// lowers the noise but increases the conversion time and power consumption.
type Oversampling byte

const (
	UltraLowPower Oversampling = iota
	Standard
	HighResolution
	UltraHighResolution
)
