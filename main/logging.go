/*
	Copyright (c) 2023 Adrian Batzill
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logging.go: Initialize go logging, watch log file size and rotate, delete old logs

*/

package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ricochet2200/go-disk-usage/du"
)

const (
	debugLogFile = "bmp085d.log"
	maxLogSize   = 10 * 1024 * 1024 // rotate above 10mb
	minFreeSpace = 50 * 1024 * 1024 // leave 50mb free
	maxLogFiles  = 9
)

var logDirf string // Set according to settings.
var debugLogf string
var logFileHandle *os.File

func getLogFiles() []string {
	logs := make([]string, 0)
	entries, err := os.ReadDir(logDirf)
	if err != nil {
		return logs
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), debugLogFile+".") {
			logs = append(logs, filepath.Join(logDirf, e.Name()))
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		return logNumber(logs[i]) < logNumber(logs[j])
	})
	return logs
}

func logNumber(path string) int {
	parts := strings.Split(path, ".")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return -1
	}
	return n
}

func rotateLogs() {
	shiftLogFiles()
	openLogFile()
}

// shiftLogFiles renames log.N to log.N+1, dropping the oldest, and the current log to log.1.
func shiftLogFiles() {
	logs := getLogFiles()

	// rename suffix, remove the oldest
	for i := len(logs) - 1; i >= 0; i-- {
		logNum := logNumber(logs[i])
		if logNum < 0 {
			continue
		}

		if logNum >= maxLogFiles {
			os.Remove(logs[i])
		} else {
			os.Rename(logs[i], filepath.Join(logDirf, debugLogFile+"."+strconv.Itoa(logNum+1)))
		}
	}

	os.Rename(debugLogf, debugLogf+".1")
}

func deleteOldestLog() int64 {
	logs := getLogFiles()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if err = os.Remove(oldest); err != nil {
		return 0
	}
	return stat.Size()
}

func checkLogFiles() {
	logSize, err := os.Stat(debugLogf)
	if err == nil && logSize.Size() > maxLogSize {
		log.Printf("BMP085 Info: rotating %s at %s\n", debugLogf, humanize.Bytes(uint64(logSize.Size())))
		rotateLogs()
	}

	usage := du.NewDiskUsage(logDirf)
	freeBytes := int64(usage.Free())
	for freeBytes < minFreeSpace {
		deleted := deleteOldestLog()
		if deleted == 0 {
			break
		}
		freeBytes += deleted
	}
}

func logFileWatcher() {
	for {
		checkLogFiles()
		time.Sleep(30 * time.Second)
	}
}

func openLogFile() {
	oldFp := logFileHandle
	debugLogf = filepath.Join(logDirf, debugLogFile)
	fp, err := os.OpenFile(debugLogf, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Failed to open '%s': %s\n", debugLogf, err.Error())
	} else {
		// Keep the logfile handle for later use
		logFileHandle = fp
		log.SetOutput(io.MultiWriter(fp, os.Stdout))

		// Make sure crash dumps are written to the log as well
		syscall.Dup3(int(fp.Fd()), 2, 0)
	}
	if oldFp != nil {
		oldFp.Close()
	}
}

func initLogging(dir string) {
	logDirf = dir
	openLogFile()
	go logFileWatcher()
}

func logDbg(msg string, args ...any) {
	if currentSettings().DEBUG {
		log.Printf(msg, args...)
	}
}
