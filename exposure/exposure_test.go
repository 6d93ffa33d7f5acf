package exposure_test

import (
	"math"
	"testing"

	"github.com/DurrLab/MLE/exposure"
)

func TestUpdateFixedPointAtTarget(t *testing.T) {
	// when the observation already equals the target, the update must be
	// the identity on the prior power
	for _, pwr := range []float64{0.05, 0.2, 0.5, 0.9} {
		got := exposure.Update(exposure.TargetIntensity, pwr)
		if math.Abs(got-pwr) > 1e-12 {
			t.Errorf("Update(target, %f) = %f, expected identity", pwr, got)
		}
	}
}

func TestUpdateCap(t *testing.T) {
	// a very dark observation at full power requests full power again;
	// the one-shot result is capped at 0.999
	got := exposure.Update(1, 1.0)
	if got > 0.999 {
		t.Errorf("Update cap violated: %f", got)
	}
}

func TestUpdateDirection(t *testing.T) {
	// too dark -> raise power, too bright -> lower power
	if got := exposure.Update(64, 0.3); got <= 0.3 {
		t.Errorf("dark image should raise power, 0.3 -> %f", got)
	}
	if got := exposure.Update(250, 0.3); got >= 0.3 {
		t.Errorf("bright image should lower power, 0.3 -> %f", got)
	}
}

func TestUpdateZeroPriorPower(t *testing.T) {
	// queue underflow is treated as zero prior power; the result clamps to
	// the minimum instead of blowing up
	got := exposure.Clamp(exposure.Update(0, 0))
	if got != exposure.PwrMin {
		t.Errorf("Clamp(Update(0, 0)) = %f, expected PwrMin", got)
	}
}

func TestClampRange(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-1, exposure.PwrMin},
		{0, exposure.PwrMin},
		{0.5, 0.5},
		{2, exposure.PwrMax},
	}
	for _, tc := range cases {
		if got := exposure.Clamp(tc.in); got != tc.want {
			t.Errorf("Clamp(%f) = %f, expected %f", tc.in, got, tc.want)
		}
	}
}

func TestUpdateOutputAlwaysInRangeAfterClamp(t *testing.T) {
	for y := 0.0; y <= 255; y += 5 {
		for p := 0.0; p <= 1.0; p += 0.05 {
			got := exposure.Clamp(exposure.Update(y, p))
			if got < exposure.PwrMin || got > 0.999 {
				t.Fatalf("Clamp(Update(%f, %f)) = %f out of [PwrMin, 0.999]", y, p, got)
			}
		}
	}
}

func TestUpdateConverges(t *testing.T) {
	// simulated linear optics: intensity = 4 * 255 * power, saturating.
	// starting from PwrStart the iteration must settle at the power that
	// produces the target mean within 10 rounds
	gain := 4.0 * 255
	observe := func(pwr float64) float64 {
		y := gain * pwr
		if y > 255 {
			y = 255
		}
		return y
	}
	pwr := exposure.PwrStart
	for i := 0; i < 10; i++ {
		pwr = exposure.Clamp(exposure.Update(observe(pwr), pwr))
	}
	if y := observe(pwr); math.Abs(y-exposure.TargetIntensity) > 1 {
		t.Errorf("after 10 iterations intensity = %f, expected %d +/- 1", y, exposure.TargetIntensity)
	}
}

func TestPipelineFIFO(t *testing.T) {
	p := exposure.NewPipeline()
	p.PushEmitted(0.1)
	p.PushEmitted(0.2)
	if got := p.PopEmitted(); got != 0.1 {
		t.Errorf("PopEmitted = %f, expected 0.1", got)
	}
	if got := p.PopEmitted(); got != 0.2 {
		t.Errorf("PopEmitted = %f, expected 0.2", got)
	}
	if got := p.PopEmitted(); got != 0 {
		t.Errorf("PopEmitted on empty = %f, expected 0", got)
	}
}

func TestPipelineUpdatedUnderflow(t *testing.T) {
	p := exposure.NewPipeline()
	if _, ok := p.PopUpdated(); ok {
		t.Error("PopUpdated on empty pipeline reported a value")
	}
	p.PushUpdated(0.3)
	got, ok := p.PopUpdated()
	if !ok || got != 0.3 {
		t.Errorf("PopUpdated = %f, %v, expected 0.3, true", got, ok)
	}
}

func TestPipelineReset(t *testing.T) {
	p := exposure.NewPipeline()
	for i := 0; i < 5; i++ {
		p.PushEmitted(0.5)
		p.PushUpdated(0.5)
	}
	p.Reset()
	if got := p.PopEmitted(); got != 0 {
		t.Errorf("emitted queue not drained, got %f", got)
	}
	if _, ok := p.PopUpdated(); ok {
		t.Error("updated queue not drained")
	}
}

func TestDelayLine(t *testing.T) {
	d := exposure.NewDelayLine()
	if got := d.Pop(); got != 0 {
		t.Errorf("Pop on empty line = %f, expected 0", got)
	}
	d.Push(0.2)
	d.Push(0.4)
	if got := d.Pop(); got != 0.2 {
		t.Errorf("Pop = %f, expected 0.2", got)
	}
	d.Reset()
	if got := d.Pop(); got != 0 {
		t.Errorf("line not drained, got %f", got)
	}
}
