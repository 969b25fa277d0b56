package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/b3nn0/bmp085/sensors/bmp085"
)

// Initialize Prometheus metrics.
var (
	currentTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bmp085_temperature_celsius",
		Help: "Last compensated temperature.",
	})

	currentPressure = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bmp085_pressure_pascals",
		Help: "Last compensated pressure.",
	})

	sensorConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bmp085_connected",
		Help: "1 while the sensor is initialized and being polled.",
	})

	totalReadings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bmp085_readings_total",
		Help: "Successful temperature and pressure readings.",
	})

	totalReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmp085_read_errors_total",
			Help: "Failed readings by quantity.",
		},
		[]string{"quantity"},
	)
)

func initMetrics() {
	prometheus.MustRegister(currentTemperature)
	prometheus.MustRegister(currentPressure)
	prometheus.MustRegister(sensorConnected)
	prometheus.MustRegister(totalReadings)
	prometheus.MustRegister(totalReadErrors)
}

func updateMetrics(r bmp085.Reading) {
	currentTemperature.Set(r.Temperature)
	currentPressure.Set(r.Pressure)
	totalReadings.Inc()
}

func countReadError(quantity string) {
	totalReadErrors.With(prometheus.Labels{"quantity": quantity}).Inc()
}

func setConnectedMetric(connected bool) {
	if connected {
		sensorConnected.Set(1)
	} else {
		sensorConnected.Set(0)
	}
}
