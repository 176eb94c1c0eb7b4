// Package settings is the machine's persistent configuration: a fixed
// array of scaled int32 values mirrored to FRAM, nine storable profiles,
// and the folder-tree console UI that edits it all. The active block sits
// at FRAM address 0; profile k occupies the k+1-th block.
package settings

import (
	"encoding/binary"
	"io"
	"sync/atomic"

	"brewcode-go/drivers/mb85fram"
	"brewcode-go/errcode"
	"brewcode-go/flasher"
	"brewcode-go/hw"
	"brewcode-go/localui"
	"brewcode-go/x/mathx"
)

// ID indexes one setting in the array.
type ID int

// Scalar settings.
const (
	TempBrew    ID = iota // 0.1 degC
	TempHot               // 0.1 degC
	TempSteam             // 0.1 degC
	WeightDose            // 0.1 g
	WeightYield           // 0.1 g
	PowerBrew             // percent
	PowerHot              // percent

	firstLegSetting
)

// Per-leg parameter offsets.
const (
	LegRefStyle = iota // enumerated RefStyle*
	LegRefStart        // percent, 0.01 ml/s, or 0.1 bar per style
	LegRefEnd
	LegTriggerFlow     // 0.01 ml/s, 0 disables
	LegTriggerPressure // 0.1 bar, 0 disables
	LegTriggerMass     // 0.1 g, 0 disables
	LegTimeout         // 0.1 s, 0 skips the leg
)

// Reference styles for a leg.
const (
	RefStylePower = iota
	RefStyleFlow
	RefStylePressure
)

const (
	NumLegs      = 9
	ParamsPerLeg = 7
	NumSettings  = int(firstLegSetting) + NumLegs*ParamsPerLeg
	NumProfiles  = 9
)

// LegParam returns the ID of one leg parameter; legs are 0-based.
func LegParam(leg, param int) ID {
	return firstLegSetting + ID(leg*ParamsPerLeg+param)
}

// spec is the per-setting scale, bounds, default, and display line.
// scale 0 marks an enumerated setting adjusted in single steps.
type spec struct {
	scale int32
	min   int32
	max   int32
	std   int32
	line  int
}

var specs [NumSettings]spec

func init() {
	specs[TempBrew] = spec{scale: 10, min: 0, max: 1400, std: 900, line: lnBrewTemp}
	specs[TempHot] = spec{scale: 10, min: 0, max: 1400, std: 1000, line: lnHotTemp}
	specs[TempSteam] = spec{scale: 10, min: 0, max: 1400, std: 1400, line: lnSteamTemp}
	specs[WeightDose] = spec{scale: 10, min: 0, max: 300, std: 150, line: lnDose}
	specs[WeightYield] = spec{scale: 10, min: 0, max: 600, std: 300, line: lnYield}
	specs[PowerBrew] = spec{scale: 1, min: 0, max: 100, std: 100, line: lnBrewPower}
	specs[PowerHot] = spec{scale: 1, min: 0, max: 100, std: 20, line: lnHotPower}
	for leg := 0; leg < NumLegs; leg++ {
		ln := lnABLeg1 + leg
		specs[LegParam(leg, LegRefStyle)] = spec{scale: 0, min: 0, max: 2, std: 0, line: ln}
		specs[LegParam(leg, LegRefStart)] = spec{scale: 10, min: 0, max: 300, std: 25, line: ln}
		specs[LegParam(leg, LegRefEnd)] = spec{scale: 10, min: 0, max: 300, std: 25, line: ln}
		specs[LegParam(leg, LegTriggerFlow)] = spec{scale: 100, min: 0, max: 300, std: 0, line: ln}
		specs[LegParam(leg, LegTriggerPressure)] = spec{scale: 10, min: 0, max: 150, std: 0, line: ln}
		specs[LegParam(leg, LegTriggerMass)] = spec{scale: 10, min: 0, max: 600, std: 0, line: ln}
		specs[LegParam(leg, LegTimeout)] = spec{scale: 10, min: 0, max: 600, std: 0, line: ln}
	}
}

// FRAM layout.
const (
	blockSize  = NumSettings * 4
	activeAddr = 0
)

func profileAddr(k uint8) uint16 {
	return uint16((1 + int(k)) * blockSize)
}

// Command is one enumerated UI input.
type Command uint8

const (
	CmdNone Command = iota
	CmdSubfolder1
	CmdSubfolder2
	CmdSubfolder3
	CmdRoot
	CmdUp
	CmdPrint
)

// CommandForByte maps a console byte to a command. Unknown bytes are an
// error and leave the UI untouched.
func CommandForByte(b byte) (Command, error) {
	switch b {
	case '1':
		return CmdSubfolder1, nil
	case '2':
		return CmdSubfolder2, nil
	case '3':
		return CmdSubfolder3, nil
	case 'r':
		return CmdRoot, nil
	case 'u':
		return CmdUp, nil
	case 'p':
		return CmdPrint, nil
	}
	return CmdNone, errcode.InvalidCommand
}

const flashPeriodMs = 750

// Store is the settings array, its FRAM mirror link, and the console UI.
type Store struct {
	dev    *mb85fram.Device
	active *mb85fram.Var
	mirror []byte
	out    io.Writer

	tree      *localui.Tree
	fSettings *localui.Folder
	fAutobrew *localui.Folder
	fPresets  *localui.Folder

	fl     *flasher.Flasher
	uiMask atomic.Uint32
}

// New links the active settings block from FRAM, restoring defaults if
// any value is out of range, builds the folder tree, and prints the
// initial display.
func New(dev *mb85fram.Device, sched hw.AlarmScheduler, out io.Writer) (*Store, error) {
	s := &Store{
		dev:    dev,
		mirror: make([]byte, blockSize),
		out:    out,
	}
	var err error
	s.active, err = dev.Link(s.mirror, activeAddr, mb85fram.InitFromFRAM)
	if err != nil {
		return nil, err
	}
	if s.verify() {
		if err := s.active.Save(); err != nil {
			return nil, err
		}
	}
	s.buildTree()
	s.fl = flasher.New(sched, flashPeriodMs, func(m uint8) {
		s.uiMask.Store(uint32(m))
	})
	s.clearScreen()
	s.Print()
	return s, nil
}

// Get returns the raw scaled value of a setting.
func (s *Store) Get(id ID) int32 {
	return int32(binary.LittleEndian.Uint32(s.mirror[int(id)*4:]))
}

func (s *Store) set(id ID, v int32) {
	binary.LittleEndian.PutUint32(s.mirror[int(id)*4:], uint32(v))
}

// verify restores the whole array to defaults when any value is out of
// range. It reports whether a reset happened.
func (s *Store) verify() bool {
	for id := 0; id < NumSettings; id++ {
		v := s.Get(ID(id))
		if v < specs[id].min || v > specs[id].max {
			for j := 0; j < NumSettings; j++ {
				s.set(ID(j), specs[j].std)
			}
			return true
		}
	}
	return false
}

// SaveProfile writes the active settings into profile slot k by
// temporarily re-linking the mirror to the slot's region.
func (s *Store) SaveProfile(k uint8) error {
	if k >= NumProfiles {
		return errcode.InvalidParams
	}
	s.active.Unlink()
	tmp, err := s.dev.Link(s.mirror, profileAddr(k), mb85fram.InitFromVar)
	if err != nil {
		return err
	}
	tmp.Unlink()
	s.active, err = s.dev.Link(s.mirror, activeAddr, mb85fram.InitFromVar)
	return err
}

// LoadProfile replaces the active settings with profile slot k,
// revalidating the loaded block. An invalid block is reset to defaults
// and written back to the slot.
func (s *Store) LoadProfile(k uint8) error {
	if k >= NumProfiles {
		return errcode.InvalidParams
	}
	s.active.Unlink()
	tmp, err := s.dev.Link(s.mirror, profileAddr(k), mb85fram.InitFromFRAM)
	if err != nil {
		return err
	}
	if s.verify() {
		if err := tmp.Save(); err != nil {
			tmp.Unlink()
			return err
		}
	}
	tmp.Unlink()
	s.active, err = s.dev.Link(s.mirror, activeAddr, mb85fram.InitFromVar)
	return err
}

// UIMask is the byte shown on the LEDs while the machine is off: the
// flashed setting value inside an adjustment folder, the folder's
// relative id elsewhere.
func (s *Store) UIMask() uint8 {
	return uint8(s.uiMask.Load())
}

// Update applies one UI command.
func (s *Store) Update(cmd Command) error {
	changed := false
	switch cmd {
	case CmdSubfolder1, CmdSubfolder2, CmdSubfolder3:
		changed = s.tree.EnterSubfolder(uint8(cmd - CmdSubfolder1))
	case CmdRoot:
		changed = s.tree.GoToRoot()
	case CmdUp:
		changed = s.tree.GoUp()
	case CmdPrint:
		s.Print()
		s.printLocalUI()
	case CmdNone:
	default:
		return errcode.InvalidCommand
	}
	if changed {
		s.printLocalUI()
		s.updateFlasher()
	}
	return nil
}

// updateFlasher runs the value flasher inside adjustment folders and
// shows the folder's relative id elsewhere.
func (s *Store) updateFlasher() {
	cur := s.tree.Current()
	id := cur.ID()
	if cur.IsAction() && (s.fSettings.InSubtree(id) || s.fAutobrew.InSubtree(id)) {
		v := s.Get(ID(cur.Data()))
		if v < 0 {
			v = 0
		}
		s.fl.Update(uint16(v))
		s.fl.Start()
		return
	}
	s.fl.End()
	s.uiMask.Store(uint32(uint8(cur.RelID())))
}

// folderAction is the shared action callback: adjustment folders step
// their setting, preset folders save or load their slot. Choices above 2
// bail back to the root.
func (s *Store) folderAction(id localui.FolderID, choice uint8, data int) bool {
	if choice > 2 {
		return true
	}
	if s.fSettings.InSubtree(id) || s.fAutobrew.InSubtree(id) {
		sid := ID(data)
		var step int32
		if specs[sid].scale == 0 {
			step = int32(choice) - 1
		} else {
			deltas := [3]int32{-10, 1, 10}
			step = deltas[choice]
		}
		s.set(sid, mathx.Clamp(s.Get(sid)+step, specs[sid].min, specs[sid].max))
		s.printLine(specs[sid].line)
		s.parkCursor()
		_ = s.active.Save()
		v := s.Get(sid)
		if v < 0 {
			v = 0
		}
		s.fl.Update(uint16(v))
		s.fl.Start()
	} else if s.fPresets.InSubtree(id) {
		if choice == 0 {
			_ = s.SaveProfile(uint8(data))
		} else if choice == 1 {
			_ = s.LoadProfile(uint8(data))
			s.Print()
			s.printLocalUI()
		}
	}
	return false
}

// buildTree assembles the menu: settings, the nine autobrew legs in
// groups of three, and the nine preset slots in groups of three.
func (s *Store) buildTree() {
	t := localui.NewTree("BrewCode")
	s.tree = t
	root := t.Root()

	s.fSettings = t.AddSubfolder(root, "Settings", nil, 0)
	fTemp := t.AddSubfolder(s.fSettings, "Temperatures", nil, 0)
	t.AddSubfolder(fTemp, "Brew (-1, 0.1, 1)", s.folderAction, int(TempBrew))
	t.AddSubfolder(fTemp, "Hot (-1, 0.1, 1)", s.folderAction, int(TempHot))
	t.AddSubfolder(fTemp, "Steam (-1, 0.1, 1)", s.folderAction, int(TempSteam))
	fWeight := t.AddSubfolder(s.fSettings, "Weights", nil, 0)
	t.AddSubfolder(fWeight, "Dose (-1, 0.1, 1)", s.folderAction, int(WeightDose))
	t.AddSubfolder(fWeight, "Yield (-1, 0.1, 1)", s.folderAction, int(WeightYield))
	fPower := t.AddSubfolder(s.fSettings, "Power", nil, 0)
	t.AddSubfolder(fPower, "Brew (-10, 1, 10)", s.folderAction, int(PowerBrew))
	t.AddSubfolder(fPower, "Hot (-10, 1, 10)", s.folderAction, int(PowerHot))

	s.fAutobrew = t.AddSubfolder(root, "Autobrew", nil, 0)
	groups := [3]string{"Autobrew Legs 1-3", "Autobrew Legs 4-6", "Autobrew Legs 7-9"}
	for g, name := range groups {
		fGroup := t.AddSubfolder(s.fAutobrew, name, nil, 0)
		for i := 0; i < 3; i++ {
			leg := g*3 + i
			fLeg := t.AddSubfolder(fGroup, "Autobrew Leg "+digit(leg+1), nil, 0)
			fRef := t.AddSubfolder(fLeg, "Setpoint", nil, 0)
			t.AddSubfolder(fRef, "Style (Pwr, Flow, Prsr)", s.folderAction, int(LegParam(leg, LegRefStyle)))
			t.AddSubfolder(fRef, "Starting Setpoint", s.folderAction, int(LegParam(leg, LegRefStart)))
			t.AddSubfolder(fRef, "Ending Setpoint", s.folderAction, int(LegParam(leg, LegRefEnd)))
			fTrgr := t.AddSubfolder(fLeg, "Trigger", nil, 0)
			t.AddSubfolder(fTrgr, "Flow (ml/s, -0.1, 0.01, 0.1)", s.folderAction, int(LegParam(leg, LegTriggerFlow)))
			t.AddSubfolder(fTrgr, "Prsr (bar, -1, 0.1, 1)", s.folderAction, int(LegParam(leg, LegTriggerPressure)))
			t.AddSubfolder(fTrgr, "Mass (g, -1, 0.1, 1)", s.folderAction, int(LegParam(leg, LegTriggerMass)))
			t.AddSubfolder(fLeg, "Timeout (-1, 0.1, 1)", s.folderAction, int(LegParam(leg, LegTimeout)))
		}
	}

	s.fPresets = t.AddSubfolder(root, "Presets", nil, 0)
	presetGroups := [3]string{"Presets 1-3", "Presets 4-6", "Presets 7-9"}
	for g, name := range presetGroups {
		fGroup := t.AddSubfolder(s.fPresets, name, nil, 0)
		for i := 0; i < 3; i++ {
			slot := g*3 + i
			t.AddSubfolder(fGroup, "Preset "+digit(slot+1)+" (1-save, 2-load)", s.folderAction, slot)
		}
	}
}

func digit(n int) string {
	return string([]byte{byte('0' + n)})
}

// Tree exposes the folder tree (the renderer and tests walk it).
func (s *Store) Tree() *localui.Tree { return s.tree }
