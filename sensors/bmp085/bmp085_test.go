package bmp085

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

// Worked example from the datasheet.
var datasheetCalibration = Calibration{
	AC1: 408, AC2: -72, AC3: -14383,
	AC4: 32741, AC5: 32757, AC6: 23153,
	B1: 6190, B2: 4,
	MB: -32767, MC: -8711, MD: 2868,
}

const (
	datasheetUT = 27898
	datasheetUP = 23843
)

var errNack = errors.New("i2c: no acknowledge")

// fakeBus emulates the register file of a BMP085. A conversion command loads the output registers with the
// scripted raw sample.
type fakeBus struct {
	regs      map[byte]byte
	ut        uint16
	up        uint32 // 24 bit value as it appears in 0xF6..0xF8
	failRead  map[byte]bool
	failWrite map[byte]bool
	reads     []byte
	writes    [][2]byte
}

func newFakeBus(c Calibration) *fakeBus {
	b := &fakeBus{
		regs:      map[byte]byte{},
		failRead:  map[byte]bool{},
		failWrite: map[byte]bool{},
	}
	for i, w := range c.words() {
		reg := RegAC1 + byte(2*i)
		b.regs[reg] = byte(w >> 8)
		b.regs[reg+1] = byte(w)
	}
	return b
}

func (b *fakeBus) ReadByteFromReg(addr, reg byte) (byte, error) {
	b.reads = append(b.reads, reg)
	if addr != Address || b.failRead[reg] {
		return 0, errNack
	}
	return b.regs[reg], nil
}

func (b *fakeBus) WriteByteToReg(addr, reg, value byte) error {
	b.writes = append(b.writes, [2]byte{reg, value})
	if addr != Address || b.failWrite[reg] {
		return errNack
	}
	if reg == RegCtrlMeas {
		switch {
		case value == CmdTemperature:
			b.regs[RegOutMSB] = byte(b.ut >> 8)
			b.regs[RegOutLSB] = byte(b.ut)
		case value&0x3F == CmdPressure:
			b.regs[RegOutMSB] = byte(b.up >> 16)
			b.regs[RegOutLSB] = byte(b.up >> 8)
			b.regs[RegOutXLSB] = byte(b.up)
		}
	}
	b.regs[reg] = value
	return nil
}

func noSleep(time.Duration) {}

func newTestDev(t *testing.T, bus *fakeBus, oss Oversampling) *Dev {
	t.Helper()
	dev, err := New(bus, &Opts{Oversampling: oss, Sleep: noSleep})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSigned16(t *testing.T) {
	for w := 0; w <= 0xFFFF; w++ {
		want := w
		if w >= 0x8000 {
			want = w - 65536
		}
		if got := signed16(uint16(w)); int(got) != want {
			t.Fatalf("signed16(0x%04X) = %d, want %d", w, got, want)
		}
	}
}

func TestLoadCalibration(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	c, err := LoadCalibration(bus, Address)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if c != datasheetCalibration {
		t.Errorf("LoadCalibration = %+v, want %+v", c, datasheetCalibration)
	}
	if len(bus.reads) != 22 {
		t.Fatalf("LoadCalibration did %d reads, want 22", len(bus.reads))
	}
	for i, reg := range bus.reads {
		if want := RegAC1 + byte(i); reg != want {
			t.Errorf("read #%d from 0x%02X, want 0x%02X", i, reg, want)
		}
	}
	if len(bus.writes) != 0 {
		t.Errorf("LoadCalibration wrote %v, want no writes", bus.writes)
	}
}

func TestCalibrationValidate(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		ok   bool
	}{
		{name: "datasheet", cal: datasheetCalibration, ok: true},
		{name: "all zero", cal: Calibration{}},
		{name: "all ones", cal: Calibration{
			AC1: -1, AC2: -1, AC3: -1,
			AC4: 0xFFFF, AC5: 0xFFFF, AC6: 0xFFFF,
			B1: -1, B2: -1, MB: -1, MC: -1, MD: -1,
		}},
		{name: "single zero coefficient", cal: Calibration{AC1: 1}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrCalibration) {
				t.Errorf("Validate() = %v, want ErrCalibration", err)
			}
		})
	}
}

func TestDatasheetExample(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.ut = datasheetUT
	bus.up = datasheetUP << 8
	dev := newTestDev(t, bus, UltraLowPower)

	temp, err := dev.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if !almostEqual(temp, 15.047124207544877, 1e-9) {
		t.Errorf("ReadTemperature = %.12f, want 15.047124207545", temp)
	}
	// The datasheet uses integer arithmetic and publishes 150 (0.1 C).
	if !almostEqual(temp, 15.0, 0.1) {
		t.Errorf("ReadTemperature = %f, too far from the published 15.0 C", temp)
	}

	press, err := dev.ReadPressure()
	if err != nil {
		t.Fatalf("ReadPressure: %v", err)
	}
	if !almostEqual(press, 69962.25324988457, 1e-6) {
		t.Errorf("ReadPressure = %.9f, want 69962.253249885", press)
	}
	if !almostEqual(press, 69964, 3) {
		t.Errorf("ReadPressure = %f, too far from the published 69964 Pa", press)
	}
}

func TestReadTemperatureIdempotent(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.ut = datasheetUT
	dev := newTestDev(t, bus, UltraLowPower)

	first, err := dev.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	second, err := dev.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if first != second {
		t.Errorf("ReadTemperature not repeatable: %v then %v", first, second)
	}
}

func TestPressureDependsOnLastTemperature(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.up = datasheetUP << 8
	dev := newTestDev(t, bus, UltraLowPower)

	pressureAfter := func(ut uint16) float64 {
		t.Helper()
		bus.ut = ut
		if _, err := dev.ReadTemperature(); err != nil {
			t.Fatalf("ReadTemperature: %v", err)
		}
		p, err := dev.ReadPressure()
		if err != nil {
			t.Fatalf("ReadPressure: %v", err)
		}
		return p
	}

	base := pressureAfter(datasheetUT)
	if same := pressureAfter(datasheetUT); same != base {
		t.Errorf("same raw temperature gave pressure %v, want %v", same, base)
	}
	if other := pressureAfter(datasheetUT + 1); other == base {
		t.Errorf("different raw temperature gave the same pressure %v", other)
	}
	if again := pressureAfter(datasheetUT); again != base {
		t.Errorf("pressure %v after returning to the original temperature, want %v", again, base)
	}
}

func TestPressureBranch(t *testing.T) {
	_, b5 := datasheetCalibration.Temperature(datasheetUT)
	tests := []struct {
		name  string
		up    uint32
		below bool
		want  float64
	}{
		// B7 = (23843 - B3) * 50000 is about 1.17e9.
		{name: "multiply first", up: datasheetUP, below: true, want: 69962.25324988457},
		// B7 = (65535 - B3) * 50000 is about 3.26e9.
		{name: "divide first", up: 0xFFFF, below: false, want: 195157.8423893436},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b3 := 422.8718954140704
			b7 := (float64(tt.up) - b3) * 50000
			if (b7 < 0x80000000) != tt.below {
				t.Fatalf("B7 = %v is on the wrong side of 0x80000000", b7)
			}
			got := datasheetCalibration.Pressure(tt.up, b5, UltraLowPower)
			if !almostEqual(got, tt.want, 1e-6) {
				t.Errorf("Pressure(%d) = %.9f, want %.9f", tt.up, got, tt.want)
			}
		})
	}
}

// A sample taken with more oversampling carries oss extra bits. Compensated, it has to land on the same pressure
// as the plain sample.
func TestPressureOversampling(t *testing.T) {
	_, b5 := datasheetCalibration.Temperature(datasheetUT)
	tests := []struct {
		oss  Oversampling
		want float64
	}{
		{oss: UltraLowPower, want: 69962.25324988457},
		{oss: Standard, want: 69962.99985062251},
		{oss: HighResolution, want: 69963.37315101002},
		{oss: UltraHighResolution, want: 69963.55980120838},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("oss%d", tt.oss), func(t *testing.T) {
			up := uint32(datasheetUP) << tt.oss
			got := datasheetCalibration.Pressure(up, b5, tt.oss)
			if !almostEqual(got, tt.want, 1e-6) {
				t.Errorf("Pressure(%d, oss %d) = %.9f, want %.9f", up, tt.oss, got, tt.want)
			}
			if !almostEqual(got, 69962.25324988457, 5) {
				t.Errorf("Pressure(%d, oss %d) = %f, more than 5 Pa from the oss 0 result", up, tt.oss, got)
			}

			bus := newFakeBus(datasheetCalibration)
			bus.ut = datasheetUT
			// ReadRawPressure drops 8-oss bits, leaving datasheetUP<<oss.
			bus.up = datasheetUP << 8
			dev := newTestDev(t, bus, tt.oss)
			if _, err := dev.ReadTemperature(); err != nil {
				t.Fatalf("ReadTemperature: %v", err)
			}
			press, err := dev.ReadPressure()
			if err != nil {
				t.Fatalf("ReadPressure: %v", err)
			}
			if press != got {
				t.Errorf("ReadPressure at oss %d = %.9f, want %.9f", tt.oss, press, got)
			}
		})
	}
}

func TestSense(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.ut = datasheetUT
	bus.up = datasheetUP << 8
	dev := newTestDev(t, bus, UltraLowPower)

	r, err := dev.Sense()
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}
	if !almostEqual(r.Temperature, 15.047124207544877, 1e-9) || !almostEqual(r.Pressure, 69962.25324988457, 1e-6) {
		t.Errorf("Sense = %+v", r)
	}

	want := [][2]byte{{RegCtrlMeas, CmdTemperature}, {RegCtrlMeas, CmdPressure}}
	if len(bus.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", bus.writes, want)
	}
	for i := range want {
		if bus.writes[i] != want[i] {
			t.Errorf("write #%d = %v, want %v", i, bus.writes[i], want[i])
		}
	}
}

func TestReadPressureBeforeTemperature(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	dev := newTestDev(t, bus, UltraLowPower)
	if _, err := dev.ReadPressure(); !errors.Is(err, ErrNoTemperature) {
		t.Errorf("ReadPressure = %v, want ErrNoTemperature", err)
	}
	if len(bus.writes) != 0 {
		t.Errorf("ReadPressure started a conversion: %v", bus.writes)
	}
}

func TestReadRawPressureOversampling(t *testing.T) {
	tests := []struct {
		oss   Oversampling
		cmd   byte
		sleep time.Duration
	}{
		{UltraLowPower, 0x34, 5 * time.Millisecond},
		{Standard, 0x74, 8 * time.Millisecond},
		{HighResolution, 0xB4, 14 * time.Millisecond},
		{UltraHighResolution, 0xF4, 26 * time.Millisecond},
	}
	for _, tt := range tests {
		bus := newFakeBus(datasheetCalibration)
		bus.up = 0x5D2380
		var slept []time.Duration
		up, err := ReadRawPressure(bus, Address, tt.oss, func(d time.Duration) { slept = append(slept, d) })
		if err != nil {
			t.Fatalf("oss %d: ReadRawPressure: %v", tt.oss, err)
		}
		if want := uint32(0x5D2380) >> (8 - tt.oss); up != want {
			t.Errorf("oss %d: raw pressure = %d, want %d", tt.oss, up, want)
		}
		if bus.writes[0] != [2]byte{RegCtrlMeas, tt.cmd} {
			t.Errorf("oss %d: command = %v, want 0x%02X", tt.oss, bus.writes[0], tt.cmd)
		}
		if len(slept) != 1 || slept[0] != tt.sleep {
			t.Errorf("oss %d: slept %v, want %v", tt.oss, slept, tt.sleep)
		}
		wantReads := []byte{RegOutMSB, RegOutLSB, RegOutXLSB}
		if len(bus.reads) != 3 || bus.reads[0] != wantReads[0] || bus.reads[2] != wantReads[2] {
			t.Errorf("oss %d: reads = %v, want %v", tt.oss, bus.reads, wantReads)
		}
	}
}

func TestReadRawTemperature(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.ut = datasheetUT
	var slept time.Duration
	ut, err := ReadRawTemperature(bus, Address, func(d time.Duration) { slept += d })
	if err != nil {
		t.Fatalf("ReadRawTemperature: %v", err)
	}
	if ut != datasheetUT {
		t.Errorf("ReadRawTemperature = %d, want %d", ut, datasheetUT)
	}
	if slept < 4500*time.Microsecond {
		t.Errorf("waited %v for the conversion, want at least 4.5ms", slept)
	}
}

func TestNewBusError(t *testing.T) {
	for reg := RegAC1; reg <= RegMD+1; reg++ {
		bus := newFakeBus(datasheetCalibration)
		bus.failRead[reg] = true
		dev, err := New(bus, &Opts{Sleep: noSleep})
		if dev != nil {
			t.Errorf("reg 0x%02X: New returned a device despite the bus error", reg)
		}
		var busErr *BusError
		if !errors.As(err, &busErr) {
			t.Fatalf("reg 0x%02X: New = %v, want *BusError", reg, err)
		}
		if busErr.Op != "read" || busErr.Reg != reg || !errors.Is(err, errNack) {
			t.Errorf("reg 0x%02X: got %+v", reg, busErr)
		}
	}
}

func TestNewRejectsBadCalibration(t *testing.T) {
	dev, err := New(newFakeBus(Calibration{}), &Opts{Sleep: noSleep})
	if dev != nil || !errors.Is(err, ErrCalibration) {
		t.Errorf("New = %v, %v, want nil, ErrCalibration", dev, err)
	}
}

func TestNewRejectsOversampling(t *testing.T) {
	dev, err := New(newFakeBus(datasheetCalibration), &Opts{Oversampling: 4})
	if dev != nil || !errors.Is(err, ErrOversampling) {
		t.Errorf("New = %v, %v, want nil, ErrOversampling", dev, err)
	}
}

func TestBusErrorKeepsState(t *testing.T) {
	bus := newFakeBus(datasheetCalibration)
	bus.ut = datasheetUT
	bus.up = datasheetUP << 8
	dev := newTestDev(t, bus, UltraLowPower)

	before, err := dev.Sense()
	if err != nil {
		t.Fatalf("Sense: %v", err)
	}

	// A failed temperature read with a different sample pending must not touch B5.
	bus.ut = datasheetUT + 500
	bus.failRead[RegOutLSB] = true
	if _, err := dev.ReadTemperature(); !errors.As(err, new(*BusError)) {
		t.Fatalf("ReadTemperature = %v, want *BusError", err)
	}
	bus.failRead[RegOutLSB] = false

	after, err := dev.ReadPressure()
	if err != nil {
		t.Fatalf("ReadPressure: %v", err)
	}
	if after != before.Pressure {
		t.Errorf("ReadPressure = %v after failed temperature read, want %v", after, before.Pressure)
	}

	bus.failWrite[RegCtrlMeas] = true
	_, err = dev.ReadPressure()
	var busErr *BusError
	if !errors.As(err, &busErr) || busErr.Op != "write" || busErr.Reg != RegCtrlMeas {
		t.Errorf("ReadPressure = %v, want write *BusError on 0xF4", err)
	}
	if dev.Calibration() != datasheetCalibration {
		t.Errorf("calibration changed after bus errors")
	}
}

func TestNonFiniteCompensation(t *testing.T) {
	// X1 + MD == 0 when UT == AC6 and MD == 0.
	cal := datasheetCalibration
	cal.MD = 0
	bus := newFakeBus(cal)
	bus.ut = cal.AC6
	dev := newTestDev(t, bus, UltraLowPower)

	if _, err := dev.ReadTemperature(); !errors.Is(err, ErrCompensation) {
		t.Errorf("ReadTemperature = %v, want ErrCompensation", err)
	}
	if _, err := dev.ReadPressure(); !errors.Is(err, ErrNoTemperature) {
		t.Errorf("ReadPressure = %v, want ErrNoTemperature", err)
	}
}
