package strconvx

// Fixed-point render helpers for the console display. Settings are stored
// as scaled integers (deci-degrees, centi-ml/s, ...); these turn them into
// "12.3"-style strings without pulling fmt into the MCU image.

// FormatDeci renders v tenths as "<whole>.<frac>".
func FormatDeci(v int64) string {
	return formatScaled(v, 10, 1)
}

// FormatCenti renders v hundredths as "<whole>.<frac><frac>".
func FormatCenti(v int64) string {
	return formatScaled(v, 100, 2)
}

// FormatMilli renders v thousandths with three decimal places.
func FormatMilli(v int64) string {
	return formatScaled(v, 1000, 3)
}

func formatScaled(v, div int64, places int) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := FormatInt(v/div, 10)
	frac := FormatInt(v%div, 10)
	for len(frac) < places {
		frac = "0" + frac
	}
	if neg {
		return "-" + whole + "." + frac
	}
	return whole + "." + frac
}

// PadLeft pads s with spaces to at least width bytes.
func PadLeft(s string, width int) string {
	for len(s) < width {
		s = " " + s
	}
	return s
}

// PadRight pads s with spaces to at least width bytes.
func PadRight(s string, width int) string {
	for len(s) < width {
		s = s + " "
	}
	return s
}
