// telemetryd tails the firmware's machine-status stream from a serial
// port and republishes it as Prometheus gauges. The firmware emits one
// CSV line per 200 ms while powered:
//
//	timestamp_ms,setpoint_C,temp_C,power,flow_ml_s,pressure_bar
//
// Build the firmware with printMachineStatus enabled to produce it.
package main

import (
	"bufio"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/serial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	flagPort     = flag.String("port", "/dev/ttyUSB0", "Serial port carrying the status stream")
	flagBaud     = flag.Int("baud", 115200, "Serial baud rate")
	flagHTTPAddr = flag.String("http-addr", ":9272", "HTTP listen address for /metrics")
)

var (
	boilerSetpoint = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_boiler_setpoint_celsius",
		Help: "Boiler setpoint resolved from the active mode.",
	})
	boilerTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_boiler_temperature_celsius",
		Help: "Boiler temperature.",
	})
	pumpPower = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_pump_power_percent",
		Help: "Percent power applied to the pump.",
	})
	pumpFlow = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_pump_flow_ml_per_s",
		Help: "Measured flow rate.",
	})
	pumpPressure = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_pump_pressure_bar",
		Help: "Estimated pump pressure.",
	})
	lastLine = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "espresso_status_last_line_timestamp_seconds",
		Help: "Unix time of the last parsed status line.",
	})
	parseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "espresso_status_parse_errors_total",
		Help: "Status lines that failed to parse.",
	})
)

func main() {
	flag.Parse()

	reg := prometheus.NewRegistry()
	reg.MustRegister(boilerSetpoint, boilerTemp, pumpPower, pumpFlow, pumpPressure, lastLine, parseErrors)

	go readLoop(*flagPort, *flagBaud)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("telemetryd listening on %s, reading %s", *flagHTTPAddr, *flagPort)
	log.Fatal(http.ListenAndServe(*flagHTTPAddr, nil))
}

// readLoop keeps the serial port open, reconnecting on errors.
func readLoop(port string, baud int) {
	for {
		p, err := serial.Open(&serial.Config{
			Address:  port,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  30 * time.Second,
		})
		if err != nil {
			log.Printf("open %s: %v; retrying", port, err)
			time.Sleep(2 * time.Second)
			continue
		}
		sc := bufio.NewScanner(p)
		for sc.Scan() {
			parseLine(sc.Text())
		}
		_ = p.Close()
		log.Printf("serial stream ended (%v); reopening", sc.Err())
		time.Sleep(time.Second)
	}
}

// parseLine decodes one status line. The firmware's console display also
// travels on this port, so anything that is not a 6-field CSV line is
// silently skipped.
func parseLine(line string) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 {
		return
	}
	vals := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			if i > 0 {
				parseErrors.Inc()
			}
			return
		}
		vals[i] = v
	}
	boilerSetpoint.Set(vals[1])
	boilerTemp.Set(vals[2])
	pumpPower.Set(vals[3])
	pumpFlow.Set(vals[4])
	pumpPressure.Set(vals[5])
	lastLine.SetToCurrentTime()
}
