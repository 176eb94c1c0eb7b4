package main

import (
	"time"

	"brewcode-go/machine"
	"brewcode-go/platform"
	"brewcode-go/x/strconvx"
)

const loopPeriodMs = 10

// Set to emit a machine-status CSV line on the console every 200 ms
// (timestamp_ms,setpoint_C,temp_C,power,flow_ml_s,pressure_bar). The
// telemetryd exporter consumes this stream.
const printMachineStatus = false

const statusPeriodMs = 200

func main() {
	plat, err := platform.New()
	if err != nil {
		print("platform setup failed: ", err.Error(), "\n")
		return
	}

	m, err := machine.New(machine.Deps{
		Clock:   plat.Clock,
		Sched:   plat.Sched,
		Pins:    plat.Pins,
		Bus:     plat.Bus,
		Pulses:  plat.Pulses,
		Console: plat.Console,
	})
	if err != nil {
		print("machine setup failed: ", err.Error(), "\n")
		return
	}

	next := time.Now()
	lastStatus := time.Now()
	for {
		next = next.Add(loopPeriodMs * time.Millisecond)

		m.Tick()

		if printMachineStatus && time.Since(lastStatus) >= statusPeriodMs*time.Millisecond {
			lastStatus = time.Now()
			printStatus(m, plat)
		}

		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}
	}
}

// printStatus writes one CSV status line while the machine is powered.
func printStatus(m *machine.Machine, plat *platform.Platform) {
	st := m.State()
	if !st.Switches.AC {
		return
	}
	line := strconvx.Itoa(int(plat.Clock.NowUs()/1000)) + "," +
		strconvx.FormatCenti(int64(st.Boiler.Setpoint)*100/16) + "," +
		strconvx.FormatCenti(int64(st.Boiler.Temperature)*100/16) + "," +
		strconvx.Itoa(int(st.Pump.PowerPercent)) + "," +
		strconvx.FormatMilli(int64(st.Pump.FlowMlPerS*1000)) + "," +
		strconvx.FormatMilli(int64(st.Pump.PressureBar*1000)) + "\n"
	_, _ = plat.Console.Write([]byte(line))
}
