package settings_test

import (
	"bytes"
	"strings"
	"testing"

	"brewcode-go/drivers/drivertest"
	"brewcode-go/drivers/mb85fram"
	"brewcode-go/hw/hwtest"
	"brewcode-go/settings"
)

type harness struct {
	bench *hwtest.Bench
	fram  *drivertest.FRAM
	con   *drivertest.Console
	store *settings.Store
}

// newStore boots the settings over a FRAM image. A fresh chip is
// simulated as 0xFF-filled, which fails validation and lands defaults.
func newStore(t *testing.T, fresh bool) *harness {
	t.Helper()
	b := hwtest.NewBench()
	bus := drivertest.NewBus()
	fram := drivertest.NewFRAM()
	if fresh {
		for i := range fram.Mem {
			fram.Mem[i] = 0xFF
		}
	}
	fram.Install(bus, 0)
	dev, err := mb85fram.New(bus, 0)
	if err != nil {
		t.Fatalf("fram: %v", err)
	}
	con := drivertest.NewConsole()
	st, err := settings.New(dev, b.Sched, con)
	if err != nil {
		t.Fatalf("settings.New: %v", err)
	}
	return &harness{bench: b, fram: fram, con: con, store: st}
}

func (h *harness) apply(t *testing.T, cmds ...settings.Command) {
	t.Helper()
	for _, c := range cmds {
		if err := h.store.Update(c); err != nil {
			t.Fatalf("Update(%d): %v", c, err)
		}
	}
}

func TestFreshChipGetsDefaults(t *testing.T) {
	h := newStore(t, true)
	if got := h.store.Get(settings.TempBrew); got != 900 {
		t.Fatalf("TempBrew = %d, want default 900", got)
	}
	if got := h.store.Get(settings.PowerHot); got != 20 {
		t.Fatalf("PowerHot = %d, want default 20", got)
	}
	if got := h.store.Get(settings.LegParam(0, settings.LegTimeout)); got != 0 {
		t.Fatalf("leg 0 timeout = %d, want default 0", got)
	}
	// Defaults were written back to the chip.
	if h.fram.Mem[0] == 0xFF {
		t.Fatal("defaults not persisted")
	}
}

func TestValidImageLoadsVerbatim(t *testing.T) {
	h := newStore(t, true)
	// Re-open a second store over the persisted image: values survive
	// untouched.
	b := hwtest.NewBench()
	bus := drivertest.NewBus()
	fram := drivertest.NewFRAM()
	fram.Mem = h.fram.Mem
	fram.Install(bus, 0)
	dev, err := mb85fram.New(bus, 0)
	if err != nil {
		t.Fatalf("fram: %v", err)
	}
	st, err := settings.New(dev, b.Sched, drivertest.NewConsole())
	if err != nil {
		t.Fatalf("settings.New: %v", err)
	}
	if got := st.Get(settings.TempSteam); got != 1400 {
		t.Fatalf("TempSteam = %d after reload, want 1400", got)
	}
}

// Navigating r,1,1,1 reaches the brew-temp action folder; choices step
// the value by the scaled deltas and persist it.
func TestAdjustSettingThroughUI(t *testing.T) {
	h := newStore(t, true)
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1, settings.CmdSubfolder1, settings.CmdSubfolder1)

	h.apply(t, settings.CmdSubfolder2) // +1 in 0.1 degC
	if got := h.store.Get(settings.TempBrew); got != 901 {
		t.Fatalf("TempBrew = %d after +1, want 901", got)
	}
	h.apply(t, settings.CmdSubfolder3) // +10
	if got := h.store.Get(settings.TempBrew); got != 911 {
		t.Fatalf("TempBrew = %d after +10, want 911", got)
	}
	h.apply(t, settings.CmdSubfolder1) // -10
	if got := h.store.Get(settings.TempBrew); got != 901 {
		t.Fatalf("TempBrew = %d after -10, want 901", got)
	}

	// The adjusted value reached the chip immediately.
	if h.fram.Mem[0] != 0x85 { // 901 little-endian
		t.Fatalf("chip byte 0 = %#x, want 901's low byte", h.fram.Mem[0])
	}
}

func TestAdjustClampsAtBounds(t *testing.T) {
	h := newStore(t, true)
	// Brew power default 100 is already the max.
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1, settings.CmdSubfolder3, settings.CmdSubfolder1)
	h.apply(t, settings.CmdSubfolder3) // +10, must clamp
	if got := h.store.Get(settings.PowerBrew); got != 100 {
		t.Fatalf("PowerBrew = %d after over-range step, want 100", got)
	}
}

// Enumerated settings (scale 0) step by single units: choices map to
// -1 / 0 / +1.
func TestEnumeratedSettingSteps(t *testing.T) {
	h := newStore(t, true)
	// r, 2 (Autobrew), 1 (Legs 1-3), 1 (Leg 1), 1 (Setpoint), 1 (Style).
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder2, settings.CmdSubfolder1,
		settings.CmdSubfolder1, settings.CmdSubfolder1, settings.CmdSubfolder1)

	h.apply(t, settings.CmdSubfolder3) // +1
	if got := h.store.Get(settings.LegParam(0, settings.LegRefStyle)); got != 1 {
		t.Fatalf("style = %d after +1, want 1", got)
	}
	h.apply(t, settings.CmdSubfolder2) // 0
	if got := h.store.Get(settings.LegParam(0, settings.LegRefStyle)); got != 1 {
		t.Fatalf("style = %d after 0-step, want 1", got)
	}
	h.apply(t, settings.CmdSubfolder1) // -1
	if got := h.store.Get(settings.LegParam(0, settings.LegRefStyle)); got != 0 {
		t.Fatalf("style = %d after -1, want 0", got)
	}
}

// Save profile k, mutate the active settings, load k: the active block
// matches the saved snapshot bit for bit.
func TestProfileRoundTrip(t *testing.T) {
	h := newStore(t, true)

	if err := h.store.SaveProfile(4); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	saved := make([]byte, settings.NumSettings*4)
	copy(saved, h.fram.Mem[(1+4)*settings.NumSettings*4:])

	// Mutate brew temp through the UI.
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1, settings.CmdSubfolder1,
		settings.CmdSubfolder1, settings.CmdSubfolder3)
	if h.store.Get(settings.TempBrew) == 900 {
		t.Fatal("mutation did not take")
	}

	if err := h.store.LoadProfile(4); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got := h.store.Get(settings.TempBrew); got != 900 {
		t.Fatalf("TempBrew = %d after load, want 900", got)
	}
	active := h.fram.Mem[:settings.NumSettings*4]
	if !bytes.Equal(active, saved) {
		t.Fatal("active block does not match the saved snapshot")
	}
}

// Loading a corrupted profile resets it to defaults and rewrites the
// slot.
func TestLoadInvalidProfileResets(t *testing.T) {
	h := newStore(t, true)
	slotAddr := (1 + 2) * settings.NumSettings * 4
	for i := 0; i < settings.NumSettings*4; i++ {
		h.fram.Mem[slotAddr+i] = 0xFF
	}
	if err := h.store.LoadProfile(2); err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got := h.store.Get(settings.TempBrew); got != 900 {
		t.Fatalf("TempBrew = %d after invalid load, want default", got)
	}
	if h.fram.Mem[slotAddr] == 0xFF {
		t.Fatal("slot not rewritten with defaults")
	}
}

// Preset folders: choice 0 saves the slot, choice 1 loads it.
func TestPresetFoldersSaveAndLoad(t *testing.T) {
	h := newStore(t, true)

	// r, 3 (Presets), 1 (Presets 1-3), 2 (Preset 2) then '1' = save.
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder3, settings.CmdSubfolder1,
		settings.CmdSubfolder2, settings.CmdSubfolder1)
	slotAddr := (1 + 1) * settings.NumSettings * 4
	if h.fram.Mem[slotAddr] == 0xFF && h.fram.Mem[slotAddr+1] == 0xFF {
		t.Fatal("preset save did not write the slot")
	}

	// Mutate, then load the preset back.
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1, settings.CmdSubfolder1,
		settings.CmdSubfolder1, settings.CmdSubfolder3)
	if h.store.Get(settings.TempBrew) == 900 {
		t.Fatal("mutation did not take")
	}
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder3, settings.CmdSubfolder1,
		settings.CmdSubfolder2, settings.CmdSubfolder2)
	if got := h.store.Get(settings.TempBrew); got != 900 {
		t.Fatalf("TempBrew = %d after preset load, want 900", got)
	}
}

func TestUIMaskFollowsNavigation(t *testing.T) {
	h := newStore(t, true)
	h.apply(t, settings.CmdRoot)
	if got := h.store.UIMask(); got != 0 {
		t.Fatalf("UIMask at root = %d, want 0", got)
	}
	h.apply(t, settings.CmdSubfolder1) // Settings, rel id 1
	if got := h.store.UIMask(); got != 1 {
		t.Fatalf("UIMask in Settings = %d, want 1", got)
	}
}

func TestUIMaskFlashesInActionFolder(t *testing.T) {
	h := newStore(t, true)
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1, settings.CmdSubfolder1, settings.CmdSubfolder1)
	h.apply(t, settings.CmdSubfolder2) // 900 -> 901, so units blink too

	// The flasher emits digit frames at the blink period.
	seen := map[uint8]bool{}
	for i := 0; i < 48; i++ {
		h.bench.AdvanceMs(750)
		seen[h.store.UIMask()] = true
	}
	if !seen[0b100] || !seen[0b001] {
		t.Fatalf("flasher frames seen = %v, want hundreds and units blinks", seen)
	}
}

func TestCommandForByte(t *testing.T) {
	for b, want := range map[byte]settings.Command{
		'1': settings.CmdSubfolder1,
		'2': settings.CmdSubfolder2,
		'3': settings.CmdSubfolder3,
		'r': settings.CmdRoot,
		'u': settings.CmdUp,
		'p': settings.CmdPrint,
	} {
		got, err := settings.CommandForByte(b)
		if err != nil || got != want {
			t.Fatalf("CommandForByte(%q) = %d, %v", b, got, err)
		}
	}
	if _, err := settings.CommandForByte('x'); err == nil {
		t.Fatal("unknown byte accepted")
	}
}

func TestRenderedDisplay(t *testing.T) {
	h := newStore(t, true)
	h.apply(t, settings.CmdPrint)
	out := h.con.Output()
	for _, want := range []string{
		"Brew Temp   :  90.0 C",
		"Steam Temp  : 140.0 C",
		"Dose        :  15.0 g",
		"Brew Power  :   100 %",
		"| |        Setpoint         |         Target         | Timeout |",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("display missing %q", want)
		}
	}
}

func TestFolderViewRendersChildren(t *testing.T) {
	h := newStore(t, true)
	h.apply(t, settings.CmdRoot, settings.CmdSubfolder1)
	out := h.con.Output()
	for _, want := range []string{"Temperatures", "Weights", "Power"} {
		if !strings.Contains(out, want) {
			t.Fatalf("folder view missing %q", want)
		}
	}
}
