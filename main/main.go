/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	main.go: bmp085d, polls a BMP085 barometer and serves its readings.
*/

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/takama/daemon"
)

const (
	// name of the service
	name        = "bmp085d"
	description = "BMP085 barometric pressure and temperature logger"
)

var version = "dev"

var stdlog, errlog *log.Logger

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	config := flag.String("config", defaultConfigLocation, "Settings file")
	listen := flag.String("listen", "", "Address of the status and metrics server, overrides the settings file")
	debug := flag.Bool("debug", false, "Log every reading")
	flag.Parse()

	usage := "Usage: " + name + " install | remove | start | stop | status"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "install":
			return service.Install("-config", *config)
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	configLocation = *config
	readSettings()
	if _, err := os.Stat(configLocation); os.IsNotExist(err) {
		saveSettings()
	}
	settingsMu.Lock()
	if *listen != "" {
		globalSettings.ListenAddr = *listen
	}
	if *debug {
		globalSettings.DEBUG = true
	}
	s := globalSettings
	settingsMu.Unlock()

	initLogging(s.LogDir)
	log.Printf("%s %s starting.\n", name, version)

	initMetrics()
	setConnectedMetric(false)
	globalStatus.Version = version
	myBroadcaster = newReadingBroadcaster()

	if s.DataLog_Enabled {
		l, err := openDataLog(s.DataLogPath)
		if err != nil {
			log.Printf("BMP085 Error: can't open datalog %s: %s\n", s.DataLogPath, err.Error())
		} else {
			myDataLog = l
			defer l.Close()
			go dataLogWriter(l)
		}
	}

	initI2CSensors()
	defer i2cbus.Close()

	go managementInterface(s.ListenAddr)

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	// interrupt by system signal
	for {
		killSignal := <-interrupt
		log.Println("Got signal:", killSignal)
		switch killSignal {
		case syscall.SIGINT:
			return "Daemon was interrupted by system signal", nil
		case syscall.SIGUSR1:
			reloadSettings()
		default:
			return "Daemon was killed", nil
		}
	}
}

func init() {
	stdlog = log.New(os.Stdout, "", 0)
	errlog = log.New(os.Stderr, "", 0)
}

func main() {
	srv, err := daemon.New(name, description, daemon.SystemDaemon)
	if err != nil {
		errlog.Println("Error: ", err)
		os.Exit(1)
	}
	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		errlog.Println(status, "\nError: ", err)
		os.Exit(1)
	}
	stdlog.Println(status)
}
