/*Package exposure implements the autoexposure feedback engine.

The engine drives the mean image intensity toward a target value by
iterating a fixed-point map on the emitted illumination power.  Because the
video processor delays observations by a number of fields relative to
emission (the buffer offset, measured once at startup), powers in flight are
staged in short queues: one holding powers that have been emitted and are
awaiting the image they produced, and one holding feedback results awaiting
their turn to be emitted.  The attenuator servo for the high coherence
channel uses a third, independent queue.

The queues are single-producer single-consumer; the frame driver is both
producer and consumer, so buffered channels with non-blocking receives are
sufficient and keep the hot path free of locks.
*/
package exposure

import (
	"github.com/DurrLab/MLE/util"
)

const (
	// TargetIntensity is the autoexposure target mean on an 8 bit scale
	TargetIntensity = 128

	// MaxIntensity is the maximum intensity value of the image (8 bit)
	MaxIntensity = 255

	// PwrStart is the power diodes are initialized at before feedback is valid
	PwrStart = 0.2

	// PwrMin is the minimum power value
	PwrMin = 0.01

	// PwrMax is the maximum power value
	PwrMax = 1.0

	// queueDepth bounds the pipeline queues.  The buffer offset is a few
	// fields in practice; 256 gives generous headroom without ever
	// blocking the frame driver.
	queueDepth = 256
)

// Update computes the next illumination power from the previously measured
// image intensity and the power that produced it, using a modified secant
// root solving step.  Iterated, it converges to the power that yields
// TargetIntensity under the assumption that intensity is locally
// proportional to power below the sensor ceiling.  The result is capped at
// 0.999; callers clamp to [PwrMin, PwrMax] with Clamp.
func Update(prevIntensity, prevPwr float64) float64 {
	yFixed := float64(MaxIntensity) + 1.0

	alpha := (yFixed - float64(TargetIntensity)) * PwrMax

	newPwr := ((yFixed - prevIntensity) * prevPwr * PwrMax) /
		((float64(TargetIntensity)-prevIntensity)*prevPwr + alpha)

	if newPwr > 0.999 {
		newPwr = 0.999
	}

	return newPwr
}

// Clamp restricts a power value to [PwrMin, PwrMax]
func Clamp(pwr float64) float64 {
	return util.Clamp(pwr, PwrMin, PwrMax)
}

// Pipeline pairs emitted powers with delayed observations for one feedback
// loop.  Zero depth underflows are benign: PopEmitted returns 0 and Clamp,
// applied to the Update result, absorbs the degenerate power.
type Pipeline struct {
	// emitted holds powers sent to the device, awaiting the image field
	// they will produce
	emitted chan float64

	// updated holds feedback results that have not yet become the next
	// emission
	updated chan float64
}

// NewPipeline returns an empty Pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		emitted: make(chan float64, queueDepth),
		updated: make(chan float64, queueDepth),
	}
}

// PushEmitted stages a power that was just emitted for future pairing
func (p *Pipeline) PushEmitted(pwr float64) {
	select {
	case p.emitted <- pwr:
	default:
	}
}

// PopEmitted removes the oldest in-flight power; the zero value if empty
func (p *Pipeline) PopEmitted() float64 {
	select {
	case pwr := <-p.emitted:
		return pwr
	default:
		return 0
	}
}

// PushUpdated stages a feedback result for a future emission
func (p *Pipeline) PushUpdated(pwr float64) {
	select {
	case p.updated <- pwr:
	default:
	}
}

// PopUpdated removes the oldest pending feedback result; ok is false if none
// has accumulated yet
func (p *Pipeline) PopUpdated() (float64, bool) {
	select {
	case pwr := <-p.updated:
		return pwr, true
	default:
		return 0, false
	}
}

// Reset drains both queues, e.g. at the start of a new program
func (p *Pipeline) Reset() {
	for {
		select {
		case <-p.emitted:
		case <-p.updated:
		default:
			return
		}
	}
}

// DelayLine is a single staging queue for the attenuator servo, pairing each
// commanded power with the observation one round trip later
type DelayLine struct {
	q chan float64
}

// NewDelayLine returns an empty DelayLine
func NewDelayLine() *DelayLine {
	return &DelayLine{q: make(chan float64, queueDepth)}
}

// Push stages a commanded power
func (d *DelayLine) Push(pwr float64) {
	select {
	case d.q <- pwr:
	default:
	}
}

// Pop removes the oldest commanded power; the zero value if empty
func (d *DelayLine) Pop() float64 {
	select {
	case pwr := <-d.q:
		return pwr
	default:
		return 0
	}
}

// Reset drains the line
func (d *DelayLine) Reset() {
	for {
		select {
		case <-d.q:
		default:
			return
		}
	}
}
