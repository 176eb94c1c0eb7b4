package mb85fram_test

import (
	"bytes"
	"testing"

	"brewcode-go/drivers/drivertest"
	"brewcode-go/drivers/mb85fram"
)

func newDevice(t *testing.T) (*drivertest.FRAM, *mb85fram.Device) {
	t.Helper()
	bus := drivertest.NewBus()
	fram := drivertest.NewFRAM()
	fram.Install(bus, 0)
	dev, err := mb85fram.New(bus, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fram, dev
}

func TestNewRejectsBadAddressAndMissingChip(t *testing.T) {
	bus := drivertest.NewBus()
	if _, err := mb85fram.New(bus, 8); err == nil {
		t.Fatal("address pins > 7 accepted")
	}
	if _, err := mb85fram.New(bus, 0); err == nil {
		t.Fatal("missing chip accepted")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	fram, dev := newDevice(t)
	src := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := dev.Write(0x0123, src); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(fram.Mem[0x123:0x127], src) {
		t.Fatal("bytes not stored at address")
	}
	dst := make([]byte, 4)
	if err := dev.Read(0x0123, dst); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Fatalf("read back %x, want %x", dst, src)
	}
}

// Linking with InitFromVar seeds the remote region; InitFromFRAM seeds
// the buffer.
func TestLinkInitDirections(t *testing.T) {
	fram, dev := newDevice(t)

	buf := []byte{1, 2, 3}
	v, err := dev.Link(buf, 0x10, mb85fram.InitFromVar)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !bytes.Equal(fram.Mem[0x10:0x13], buf) {
		t.Fatal("InitFromVar did not write the buffer")
	}
	v.Unlink()

	copy(fram.Mem[0x20:], []byte{9, 8, 7})
	buf2 := make([]byte, 3)
	v2, err := dev.Link(buf2, 0x20, mb85fram.InitFromFRAM)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !bytes.Equal(buf2, []byte{9, 8, 7}) {
		t.Fatalf("InitFromFRAM loaded %v", buf2)
	}
	v2.Unlink()
}

func TestVarSaveLoadAndUnlink(t *testing.T) {
	fram, dev := newDevice(t)
	buf := []byte{0, 0}
	v, err := dev.Link(buf, 0x40, mb85fram.InitFromVar)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	buf[0], buf[1] = 0xAA, 0x55
	if err := v.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fram.Mem[0x40] != 0xAA || fram.Mem[0x41] != 0x55 {
		t.Fatal("Save did not reach the chip")
	}

	fram.Mem[0x40] = 0x11
	if err := v.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf[0] != 0x11 {
		t.Fatal("Load did not refresh the buffer")
	}

	v.Unlink()
	if err := v.Save(); err == nil {
		t.Fatal("Save after Unlink succeeded")
	}
	if err := v.Load(); err == nil {
		t.Fatal("Load after Unlink succeeded")
	}
	// Unlinking twice is harmless.
	v.Unlink()
}

func TestSetAllFills(t *testing.T) {
	fram, dev := newDevice(t)
	if err := dev.SetAll(0x5A, 1024); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	for i := 0; i < 1024; i++ {
		if fram.Mem[i] != 0x5A {
			t.Fatalf("Mem[%d] = %#x, want 0x5A", i, fram.Mem[i])
		}
	}
	if fram.Mem[1024] == 0x5A {
		t.Fatal("SetAll wrote past the cap")
	}
}
