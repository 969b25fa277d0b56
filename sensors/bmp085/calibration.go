package bmp085

import "fmt"

// Calibration holds the eleven compensation coefficients programmed into the sensor EEPROM at the factory. The
// names follow the datasheet.
type Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

// LoadCalibration reads the calibration coefficients of the device at addr, one byte per transaction, MSB first.
// The values are returned as read; see Validate for a plausibility check.
func LoadCalibration(bus Bus, addr byte) (Calibration, error) {
	var c Calibration

	coeffs := []struct {
		reg      byte
		signed   *int16
		unsigned *uint16
	}{
		{reg: RegAC1, signed: &c.AC1},
		{reg: RegAC2, signed: &c.AC2},
		{reg: RegAC3, signed: &c.AC3},
		{reg: RegAC4, unsigned: &c.AC4},
		{reg: RegAC5, unsigned: &c.AC5},
		{reg: RegAC6, unsigned: &c.AC6},
		{reg: RegB1, signed: &c.B1},
		{reg: RegB2, signed: &c.B2},
		{reg: RegMB, signed: &c.MB},
		{reg: RegMC, signed: &c.MC},
		{reg: RegMD, signed: &c.MD},
	}

	for _, coeff := range coeffs {
		raw, err := readWord(bus, addr, coeff.reg)
		if err != nil {
			return Calibration{}, err
		}
		if coeff.unsigned != nil {
			*coeff.unsigned = raw
		} else {
			*coeff.signed = signed16(raw)
		}
	}
	return c, nil
}

// Validate rejects coefficient sets that can not come from a working sensor: every word reading back as 0x0000 or
// as 0xFFFF means the bus returned nothing useful.
func (c Calibration) Validate() error {
	words := c.words()
	zero, ones := true, true
	for _, w := range words {
		zero = zero && w == 0x0000
		ones = ones && w == 0xFFFF
	}
	if zero || ones {
		return fmt.Errorf("%w: all coefficients read as 0x%04X", ErrCalibration, words[0])
	}
	return nil
}

// words returns the coefficients as the raw register words, in register order.
func (c Calibration) words() [11]uint16 {
	return [11]uint16{
		uint16(c.AC1), uint16(c.AC2), uint16(c.AC3),
		c.AC4, c.AC5, c.AC6,
		uint16(c.B1), uint16(c.B2),
		uint16(c.MB), uint16(c.MC), uint16(c.MD),
	}
}

// signed16 reinterprets a register word as a two's complement value.
func signed16(w uint16) int16 {
	if w&0x8000 != 0 {
		return int16(int32(w) - 65536)
	}
	return int16(w)
}

// Temperature converts a raw temperature sample into degrees C. It also returns B5, the intermediate value the
// pressure compensation depends on.
func (c Calibration) Temperature(ut uint16) (celsius, b5 float64) {
	x1 := float64(int32(ut)-int32(c.AC6)) * float64(c.AC5) / 32768
	x2 := float64(c.MC) * 2048 / (x1 + float64(c.MD))
	b5 = x1 + x2
	return ((b5 + 8) / 16) / 10, b5
}

// Pressure converts a raw pressure sample taken with oversampling oss into Pa, using B5 from a temperature
// conversion. The evaluation order follows the datasheet, it matters for the rounding of the result.
func (c Calibration) Pressure(up uint32, b5 float64, oss Oversampling) float64 {
	scale := float64(uint32(1) << oss)

	b6 := b5 - 4000
	b6sq := b6 * b6
	x1 := (float64(c.B2) * b6sq / 4096) / 2048
	x2 := float64(c.AC2) * b6 / 2048
	x3 := x1 + x2
	b3 := ((float64(c.AC1)*4+x3)*scale + 2) / 4

	x1 = float64(c.AC3) * b6 / 8192
	x2 = (float64(c.B1) * (b6sq / 4096)) / 65536
	x3 = ((x1 + x2) + 2) / 4
	b4 := float64(c.AC4) * float64(uint32(int64(x3+32768))) / 32768

	b7 := (float64(up) - b3) * (50000 / scale)
	var p float64
	if b7 < 0x80000000 {
		p = (b7 * 2) / b4
	} else {
		p = (b7 / b4) * 2
	}

	x1 = (p / 256) * (p / 256)
	x1 = (x1 * 3038) / 65536
	x2 = (-7357 * p) / 65536
	return p + (x1+x2+3791)/16
}
