package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/b3nn0/bmp085/sensors/bmp085"
)

type status struct {
	Version           string
	BMPConnected      bool
	Uptime            int64 // seconds
	Temperature       float64
	Pressure          float64
	LastReading       time.Time
	LastReadingAge    string
	Readings          uint64
	Connected_Clients int
}

var (
	globalStatus status
	statusMu     sync.Mutex
	timeStarted  = time.Now()
)

func isBMPConnected() bool {
	statusMu.Lock()
	defer statusMu.Unlock()
	return globalStatus.BMPConnected
}

func setBMPConnected(connected bool) {
	statusMu.Lock()
	globalStatus.BMPConnected = connected
	statusMu.Unlock()
	setConnectedMetric(connected)
}

func updateStatus(t time.Time, r bmp085.Reading) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Temperature = r.Temperature
	globalStatus.Pressure = r.Pressure
	globalStatus.LastReading = t
	globalStatus.Readings++
}

func currentStatus(now time.Time) status {
	statusMu.Lock()
	s := globalStatus
	statusMu.Unlock()

	s.Uptime = int64(now.Sub(timeStarted) / time.Second)
	if s.LastReading.IsZero() {
		s.LastReadingAge = "never"
	} else {
		s.LastReadingAge = humanize.RelTime(s.LastReading, now, "ago", "from now")
	}
	if myBroadcaster != nil {
		s.Connected_Clients = myBroadcaster.numClients()
	}
	return s
}

// AJAX call - /getStatus. Responds with the connection state and the last reading.
func handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	statusJSON, _ := json.Marshal(currentStatus(time.Now()))
	fmt.Fprintf(w, "%s\n", statusJSON)
}

// AJAX call - /getSettings. Responds with the current settings.
func handleSettingsGetRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	settingsJSON, _ := json.Marshal(currentSettings())
	fmt.Fprintf(w, "%s\n", settingsJSON)
}

// maxHistory bounds the n of /getHistory.
const maxHistory = 10000

// AJAX call - /getHistory?n=N. Responds with the last N logged readings, newest first. N above maxHistory is clamped.
func handleHistoryRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if myDataLog == nil {
		http.Error(w, "datalog disabled", http.StatusServiceUnavailable)
		return
	}
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		if parsed > maxHistory {
			parsed = maxHistory
		}
		n = int(parsed)
	}
	readings, err := myDataLog.recentReadings(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	historyJSON, _ := json.Marshal(readings)
	fmt.Fprintf(w, "%s\n", historyJSON)
}

func newManagementMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/getStatus", handleStatusRequest)
	mux.HandleFunc("/getSettings", handleSettingsGetRequest)
	mux.HandleFunc("/getHistory", handleHistoryRequest)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readings",
		func(w http.ResponseWriter, req *http.Request) {
			s := websocket.Server{
				Handler: websocket.Handler(myBroadcaster.serve)}
			s.ServeHTTP(w, req)
		})
	return mux
}

func managementInterface(addr string) {
	err := http.ListenAndServe(addr, newManagementMux())
	if err != nil {
		log.Printf("managementInterface ListenAndServe: %s\n", err.Error())
	}
}
