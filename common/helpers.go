package common

import (
	"fmt"
	"os"
	"os/user"
)

func IsRunningAsRoot() bool {
	usr, err := user.Current()
	return err == nil && usr.Username == "root"
}

// I2CDevicePath returns the character device of the numbered I2C bus.
func I2CDevicePath(bus byte) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}

// CheckI2CAccess opens the I2C bus device read-write and closes it again, to give a readable error before the
// driver layer fails with a less obvious one.
func CheckI2CAccess(bus byte) error {
	f, err := os.OpenFile(I2CDevicePath(bus), os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}
