package settings

// Console rendering. The display is a fixed 24-line layout: scalar
// settings one per line up top, the 9-leg autobrew table below, then a
// 4-line folder view. Updates are line-addressed with ANSI cursor
// positioning and erase-in-line, so only touched lines repaint.

import (
	"io"

	"brewcode-go/x/strconvx"
)

// Display lines, top to bottom.
const (
	lnTopBuff = iota
	lnBrewTemp
	lnHotTemp
	lnSteamTemp
	lnDose
	lnYield
	lnBrewPower
	lnHotPower
	lnMidBuff
	lnABTopBoundary
	lnABHeader1
	lnABHeader2
	lnABTopDivide
	lnABLeg1
	lnABLeg2
	lnABLeg3
	lnABLeg4
	lnABLeg5
	lnABLeg6
	lnABLeg7
	lnABLeg8
	lnABLeg9
	lnABLowBoundary
	lnLowBuff
	lnCount
)

// localUINumLn is the folder view's line budget below the table.
const localUINumLn = 4

const (
	escClear     = "\x1b[2J"
	escEraseLine = "\x1b[2K"
	escUnderOn   = "\x1b[4m"
	escUnderOff  = "\x1b[24m"
)

func (s *Store) wr(str string) {
	_, _ = io.WriteString(s.out, str)
}

// moveTo puts the cursor at column 1 of the given 0-based display line.
func (s *Store) moveTo(line int) {
	s.wr("\x1b[" + strconvx.Itoa(line+1) + ";1H")
}

func (s *Store) clearScreen() { s.wr(escClear) }

// parkCursor leaves the cursor below the folder view.
func (s *Store) parkCursor() { s.moveTo(lnCount + localUINumLn + 1) }

// printLine repaints one display line from the current settings.
func (s *Store) printLine(line int) {
	s.moveTo(line)
	s.wr(escEraseLine)
	switch {
	case line == lnBrewTemp:
		s.wr("Brew Temp   : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(TempBrew))), 5) + " C\n")
	case line == lnHotTemp:
		s.wr("Hot Temp    : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(TempHot))), 5) + " C\n")
	case line == lnSteamTemp:
		s.wr("Steam Temp  : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(TempSteam))), 5) + " C\n")
	case line == lnDose:
		s.wr("Dose        : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(WeightDose))), 5) + " g\n")
	case line == lnYield:
		s.wr("Yield       : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(WeightYield))), 5) + " g\n")
	case line == lnBrewPower:
		s.wr("Brew Power  :   " + strconvx.PadLeft(strconvx.Itoa(int(s.Get(PowerBrew))), 3) + " %\n")
	case line == lnHotPower:
		s.wr("Hot Power   :   " + strconvx.PadLeft(strconvx.Itoa(int(s.Get(PowerHot))), 3) + " %\n")
	case line == lnABTopBoundary || line == lnABLowBoundary:
		s.wr("|=|=========================|========================|=========|\n")
	case line == lnABHeader1:
		s.wr("| |        Setpoint         |         Target         | Timeout |\n")
	case line == lnABHeader2:
		s.wr("|#|  Style  : Start :  End  | Flow : Pressure : Mass |         |\n")
	case line == lnABTopDivide:
		s.wr("|-|---------:-------:-------|------:----------:------|---------|\n")
	case line >= lnABLeg1 && line <= lnABLeg9:
		s.printLegLine(line - lnABLeg1)
	default:
		s.wr("\n")
	}
}

// printLegLine renders one row of the autobrew table.
func (s *Store) printLegLine(leg int) {
	s.wr("|" + digit(leg+1) + "|")
	start := int64(s.Get(LegParam(leg, LegRefStart)))
	end := int64(s.Get(LegParam(leg, LegRefEnd)))
	switch s.Get(LegParam(leg, LegRefStyle)) {
	case RefStyleFlow:
		s.wr("  Flow   : " + strconvx.PadLeft(strconvx.FormatCenti(start), 5) +
			" : " + strconvx.PadLeft(strconvx.FormatCenti(end), 5) + " ")
	case RefStylePressure:
		s.wr(" Pressure: " + strconvx.PadLeft(strconvx.FormatDeci(start), 5) +
			" : " + strconvx.PadLeft(strconvx.FormatDeci(end), 5) + " ")
	default:
		s.wr("  Power  : " + strconvx.PadLeft(strconvx.Itoa(int(start)), 5) +
			" : " + strconvx.PadLeft(strconvx.Itoa(int(end)), 5) + " ")
	}
	s.wr("| " + strconvx.PadLeft(strconvx.FormatCenti(int64(s.Get(LegParam(leg, LegTriggerFlow)))), 4) +
		" :   " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(LegParam(leg, LegTriggerPressure)))), 4) +
		"   : " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(LegParam(leg, LegTriggerMass)))), 4) +
		" |  " + strconvx.PadLeft(strconvx.FormatDeci(int64(s.Get(LegParam(leg, LegTimeout)))), 4) +
		"   |\n")
}

// Print repaints the whole settings display.
func (s *Store) Print() {
	s.clearScreen()
	for ln := 0; ln < lnCount; ln++ {
		s.printLine(ln)
	}
	s.parkCursor()
}

// printLocalUI repaints the folder view below the table: the folder name
// and up to three numbered children, or the setting being adjusted.
func (s *Store) printLocalUI() {
	s.moveTo(lnCount + localUINumLn)
	for i := 0; i < localUINumLn; i++ {
		s.wr("\x1b[A" + escEraseLine)
	}

	cur := s.tree.Current()
	if cur.IsAction() {
		s.wr("Adjusting: " + cur.Name() + "\n")
		for i := 1; i < localUINumLn; i++ {
			s.wr("\n")
		}
	} else {
		s.wr(escUnderOn + cur.Name() + escUnderOff + "\n")
		children := cur.Children()
		n := len(children)
		overflow := n > localUINumLn-1
		if overflow {
			n = localUINumLn - 1
		}
		for i := 0; i < n; i++ {
			s.wr(" (" + digit(i+1) + ") " + children[i].Name())
			if overflow && i == n-1 {
				s.wr("...")
			}
			s.wr("\n")
		}
	}
	s.parkCursor()
}
