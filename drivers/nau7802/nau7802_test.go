package nau7802_test

import (
	"testing"

	"brewcode-go/drivers/drivertest"
	"brewcode-go/drivers/nau7802"
)

func newScale(t *testing.T) (*drivertest.NAU7802, *nau7802.Device) {
	t.Helper()
	bus := drivertest.NewBus()
	fake := drivertest.NewNAU7802()
	fake.Install(bus)
	dev := nau7802.New(bus)
	cfg := nau7802.DefaultConfig
	cfg.ConversionMg = -0.5
	if err := dev.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return fake, dev
}

func TestConfigureMissingDevice(t *testing.T) {
	bus := drivertest.NewBus()
	dev := nau7802.New(bus)
	if err := dev.Configure(nau7802.DefaultConfig); err == nil {
		t.Fatal("missing device accepted")
	}
}

func TestReadRawSignExtends(t *testing.T) {
	fake, dev := newScale(t)

	fake.SetRaw(0x123456)
	got, err := dev.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if got != 0x123456 {
		t.Fatalf("ReadRaw = %#x, want 0x123456", got)
	}

	fake.SetRaw(-100)
	got, err = dev.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if got != -100 {
		t.Fatalf("ReadRaw = %d, want -100 (sign extension)", got)
	}
}

func TestZeroAndReadMg(t *testing.T) {
	fake, dev := newScale(t)

	fake.SetRaw(1000)
	if err := dev.Zero(); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	mg, err := dev.ReadMg()
	if err != nil {
		t.Fatalf("ReadMg: %v", err)
	}
	if mg != 0 {
		t.Fatalf("ReadMg = %d right after tare, want 0", mg)
	}

	// conversion -0.5 mg/count: 20000 counts below the origin reads 10 g.
	fake.SetRaw(1000 - 20000)
	mg, err = dev.ReadMg()
	if err != nil {
		t.Fatalf("ReadMg: %v", err)
	}
	if mg != 10000 {
		t.Fatalf("ReadMg = %d, want 10000", mg)
	}
}

func TestAtValMg(t *testing.T) {
	fake, dev := newScale(t)
	fake.SetRaw(0)
	if err := dev.Zero(); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	fake.SetRaw(-60000) // 30 g at -0.5 mg/count
	if !dev.AtValMg(30000) {
		t.Fatal("AtValMg(30000) false at 30 g")
	}
	if !dev.AtValMg(15000) {
		t.Fatal("AtValMg(15000) false at 30 g")
	}
	if dev.AtValMg(31000) {
		t.Fatal("AtValMg(31000) true at 30 g")
	}
}
