/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	settings.go: JSON settings file, read at startup and on SIGUSR1.
*/

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/b3nn0/bmp085/sensors/bmp085"
)

const (
	defaultConfigLocation = "/etc/bmp085d.conf"
	defaultListenAddr     = ":9978"
	defaultLogDir         = "/var/log"
	defaultDataLogPath    = "/var/log/bmp085.sqlite"
	defaultPollIntervalMS = 1000
)

type settings struct {
	BMP_Sensor_Enabled bool
	I2C_Bus            byte
	Oversampling       byte // 0-3, see bmp085.Oversampling
	PollIntervalMS     int
	ListenAddr         string
	LogDir             string
	DataLog_Enabled    bool
	DataLogPath        string
	DEBUG              bool
}

var (
	configLocation = defaultConfigLocation
	globalSettings = defaultSettings()
	settingsMu     sync.Mutex
)

func defaultSettings() settings {
	return settings{
		BMP_Sensor_Enabled: true,
		I2C_Bus:            1,
		Oversampling:       byte(bmp085.UltraLowPower),
		PollIntervalMS:     defaultPollIntervalMS,
		ListenAddr:         defaultListenAddr,
		LogDir:             defaultLogDir,
		DataLog_Enabled:    true,
		DataLogPath:        defaultDataLogPath,
	}
}

// loadSettings reads the settings file at path. Fields missing from the file keep their defaults.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()
	buf, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(buf, &s); err != nil {
		return defaultSettings(), err
	}
	return s, s.validate()
}

// validate resets out of range values to their defaults and reports the first one it found.
func (s *settings) validate() error {
	var err error
	if bmp085.Oversampling(s.Oversampling) > bmp085.UltraHighResolution {
		err = fmt.Errorf("oversampling %d out of range 0-3", s.Oversampling)
		s.Oversampling = byte(bmp085.UltraLowPower)
	}
	if s.PollIntervalMS <= 0 {
		if err == nil {
			err = fmt.Errorf("poll interval %dms must be positive", s.PollIntervalMS)
		}
		s.PollIntervalMS = defaultPollIntervalMS
	}
	if s.ListenAddr == "" {
		s.ListenAddr = defaultListenAddr
	}
	if s.LogDir == "" {
		s.LogDir = defaultLogDir
	}
	if s.DataLogPath == "" {
		s.DataLogPath = defaultDataLogPath
	}
	return err
}

func (s settings) pollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

func readSettings() {
	s, err := loadSettings(configLocation)
	if err != nil {
		log.Printf("can't read settings %s: %s\n", configLocation, err.Error())
	}
	settingsMu.Lock()
	globalSettings = s
	settingsMu.Unlock()
	log.Printf("read in settings.\n")
}

func saveSettings() {
	settingsMu.Lock()
	jsonSettings, _ := json.MarshalIndent(&globalSettings, "", "  ")
	settingsMu.Unlock()
	if err := os.WriteFile(configLocation, jsonSettings, 0644); err != nil {
		log.Printf("can't save settings %s: %s\n", configLocation, err.Error())
		return
	}
	log.Printf("wrote settings.\n")
}

func currentSettings() settings {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	return globalSettings
}
