/*Package program defines the illumination programs for the multi-contrast
laser source.

A program is a repeating sequence of steps with one step per image field.
Each step carries a vector of pulse width weightings (one per laser diode)
and the color channel used for autoexposure updates on that field.  For
example:

	{Weights: [...]{1.0, 0.8, 0.3, 0, ...}, Channel: Mono},
	{Weights: [...]{1.0, 1.0, 0, 0, ...},   Channel: Red},

assigns relative pulse widths of 100%, 80% and 30% to diodes 1-3 on odd
fields with all channels averaged for autoexposure, and 100% to diodes 1-2
on even fields with the red channel mean driving autoexposure.

The laser diodes are wired to the modulation controller pins in this order:

	635 nm  (RGB unit 1)
	522 nm  (RGB unit 1)
	446 nm  (RGB unit 1)
	635 nm  (RGB unit 2)
	522 nm  (RGB unit 2)
	446 nm  (RGB unit 2)
	635 nm  (RGB unit 3)
	522 nm  (RGB unit 3)
	446 nm  (RGB unit 3)
	406 nm
	446 nm
	543 nm
	562 nm
	657 nm
	639 nm  (high coherence)

Fractional weights below 1.0 derate diodes that share an optical path to
balance power.  The tables are fixed at compile time; Mode.Program returns
them by value so callers cannot mutate the definitions.
*/
package program

// NumLaserDiodes is the number of modulation controller laser diode channels
const NumLaserDiodes = 15

// Channel identifies the image color channel used for autoexposure
type Channel int

// Autoexposure channel values.  Mono averages blue, green and red.
const (
	Red Channel = iota
	Green
	Blue
	Mono
)

// Mode is an illumination mode selectable at runtime
type Mode int

// Illumination modes.  Sync is a startup procedure rather than a program;
// its completion unlocks the imaging modes.
const (
	Off Mode = iota
	WLE
	PSE
	LSCI
	Multi
	SSFDI
	Warmup
	Sync
)

// String returns the display name of the mode
func (m Mode) String() string {
	switch m {
	case Off:
		return "OFF"
	case WLE:
		return "WLE"
	case PSE:
		return "PSE"
	case LSCI:
		return "LSCI"
	case Multi:
		return "MULTI"
	case SSFDI:
		return "SSFDI"
	case Warmup:
		return "WARMUP"
	case Sync:
		return "SYNC"
	}
	return "UNKNOWN"
}

// ParseMode converts a display name back to a Mode
func ParseMode(s string) (Mode, bool) {
	for m := Off; m <= Sync; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return Off, false
}

// Step is one field of an illumination program
type Step struct {
	// Weights holds the relative pulse width of each diode, in [0, 1]
	Weights [NumLaserDiodes]float64

	// Channel selects the image mean that drives autoexposure for this field
	Channel Channel
}

// Program is a cyclic sequence of steps, consumed one step per image field
type Program []Step

var (
	wlePrgrm = Program{
		{Weights: [NumLaserDiodes]float64{1, 0.85, 0.85, 1, 0.85, 0.85, 1, 0.85, 0.85, 0, 0, 0, 0, 0, 0}, Channel: Mono},
	}
	psePrgrm = Program{
		{Weights: [NumLaserDiodes]float64{0.85, 0.85, 0.85, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Mono},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0.85, 0.85, 0.85, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Mono},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0.85, 0.85, 0.85, 0, 0, 0, 0, 0, 0}, Channel: Mono},
	}
	lsciPrgrm = Program{
		{Weights: [NumLaserDiodes]float64{1, 0.85, 0.85, 1, 0.85, 0.85, 1, 0.85, 0.85, 0, 0, 0, 0, 0, 0}, Channel: Mono},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, Channel: Red},
	}
	multiPrgrm = Program{
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0}, Channel: Blue},
		{Weights: [NumLaserDiodes]float64{0, 0.7, 0, 0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Green},
		{Weights: [NumLaserDiodes]float64{0.7, 0, 0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Red},
		{Weights: [NumLaserDiodes]float64{0, 0, 0.7, 0, 0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Blue},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0}, Channel: Green},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0}, Channel: Red},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0}, Channel: Blue},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0}, Channel: Green},
	}
	ssfdiPrgrm = Program{
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}, Channel: Red},
		{Weights: [NumLaserDiodes]float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, Channel: Red},
	}
	warmupPrgrm = Program{
		{Weights: [NumLaserDiodes]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, Channel: Mono},
		{Weights: [NumLaserDiodes]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, Channel: Mono},
	}
	offPrgrm = Program{
		{Weights: [NumLaserDiodes]float64{}, Channel: Mono},
	}
)

// Program returns the program for the mode.  Sync has no program of its own
// and maps to the off program, which is also what the controller installs
// while synchronizing.
func (m Mode) Program() Program {
	var src Program
	switch m {
	case WLE:
		src = wlePrgrm
	case PSE:
		src = psePrgrm
	case LSCI:
		src = lsciPrgrm
	case Multi:
		src = multiPrgrm
	case SSFDI:
		src = ssfdiPrgrm
	case Warmup:
		src = warmupPrgrm
	default:
		src = offPrgrm
	}
	out := make(Program, len(src))
	copy(out, src)
	return out
}
