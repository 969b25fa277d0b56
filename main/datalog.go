/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	datalog.go: Log sensor readings as they are received. Bucket data into timestamp time slots.

*/

package main

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/b3nn0/bmp085/sensors/bmp085"
)

const (
	LOG_TIMESTAMP_RESOLUTION = 250 * time.Millisecond
)

type dataLogTimestamp struct {
	id   int64
	time time.Time
}

type loggedReading struct {
	Time        time.Time
	Temperature float64
	Pressure    float64
}

type dataLog struct {
	db        *sql.DB
	timestamp dataLogTimestamp // Current timestamp bucket.
}

func openDataLog(path string) (*dataLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS timestamp (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, time INTEGER NOT NULL)",
		"CREATE TABLE IF NOT EXISTS readings (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, temperature REAL, pressure REAL, timestamp_id INTEGER REFERENCES timestamp(id))",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &dataLog{db: db}, nil
}

// checkTimestamp makes sure the current timestamp bucket covers t, opening a new one if it has expired or has
// never been entered.
func (l *dataLog) checkTimestamp(t time.Time) error {
	if l.timestamp.id != 0 && t.Sub(l.timestamp.time) < LOG_TIMESTAMP_RESOLUTION {
		return nil
	}
	res, err := l.db.Exec("INSERT INTO timestamp (time) VALUES (?)", t.UnixNano())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.timestamp = dataLogTimestamp{id: id, time: t}
	return nil
}

func (l *dataLog) logReading(t time.Time, r bmp085.Reading) error {
	if err := l.checkTimestamp(t); err != nil {
		return err
	}
	_, err := l.db.Exec("INSERT INTO readings (temperature, pressure, timestamp_id) VALUES (?, ?, ?)",
		r.Temperature, r.Pressure, l.timestamp.id)
	return err
}

// recentReadings returns up to n readings, newest first.
func (l *dataLog) recentReadings(n int) ([]loggedReading, error) {
	rows, err := l.db.Query(`SELECT timestamp.time, readings.temperature, readings.pressure
		FROM readings JOIN timestamp ON readings.timestamp_id = timestamp.id
		ORDER BY readings.id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []loggedReading{}
	for rows.Next() {
		var ns int64
		var r loggedReading
		if err := rows.Scan(&ns, &r.Temperature, &r.Pressure); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, ns)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (l *dataLog) Close() error {
	return l.db.Close()
}

type DataLogRow struct {
	time    time.Time
	reading bmp085.Reading
}

var dataLogChan = make(chan DataLogRow, 10240)
var myDataLog *dataLog

func dataLogWriter(l *dataLog) {
	for r := range dataLogChan {
		if err := l.logReading(r.time, r.reading); err != nil {
			log.Printf("BMP085 Error: datalog: %s\n", err.Error())
		}
	}
}

func logReading(t time.Time, r bmp085.Reading) {
	if myDataLog == nil {
		return
	}
	select {
	case dataLogChan <- DataLogRow{time: t, reading: r}:
	default:
		logDbg("BMP085 Info: datalog queue full, dropping reading\n")
	}
}
