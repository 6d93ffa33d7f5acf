/*Package lightctl manages the light modulation controller and the direct
drive rotation mount.

Mean image intensity values are repeatedly input and used to update the
diode pulse widths for autoexposure.  The updated pulse widths are sent to
the modulation controller over serial, and voltage values from the power
monitoring units come back the same way.  The controller also implements a
mode for synchronizing the light source with the clinical video processor:
it emits a single bright flash, then looks for the flash in the incoming
frames to measure the delay between emission and observation.  That delay
(the buffer offset) is what aligns output power values with the image
intensities they produced.

Advance is invoked once per grabbed frame by the frame driver and never
blocks beyond queue enqueues; mode changes arriving from other goroutines
serialize against it.
*/
package lightctl

import (
	"math"
	"sync"
	"time"

	"github.com/DurrLab/MLE/comm"
	"github.com/DurrLab/MLE/exposure"
	"github.com/DurrLab/MLE/logging"
	"github.com/DurrLab/MLE/program"
	"github.com/DurrLab/MLE/thorlabs"
	"github.com/DurrLab/MLE/util"
)

const (
	// PWMax is the maximum allowed pulse width (microseconds)
	PWMax = 14000

	// PWLSCI is the fixed pulse width of the high coherence diode in LSCI
	// mode (microseconds); its power is expressed by the half-wave plate
	// angle instead of the modulation duty
	PWLSCI = 7000

	// SyncDetectThreshold is the mean intensity above which the sync flash
	// is considered found, on a 0-255 scale
	SyncDetectThreshold = 40

	// hcIdx is the diode index of the high coherence channel
	hcIdx = program.NumLaserDiodes - 1
)

// Link is the duplex record queue pair to the modulation controller
type Link interface {
	Enqueue(comm.OutboundCommand)
	TryDequeue() (comm.InboundTelemetry, bool)
	Close() error
}

// Mount is the attenuator rotation stage
type Mount interface {
	SetAngle(float64) error
	Close() error
}

// Controller sequences illumination programs and closes the autoexposure
// loop.  Create with New; Close forces the source off and releases both
// devices.
type Controller struct {
	mu sync.Mutex

	link  Link
	mount Mount
	log   *logging.Log

	mode         program.Mode
	prgrm        program.Program
	counter      int
	bufferOffset int
	synced       bool
	fid          int32

	pipe *exposure.Pipeline
	rot  *exposure.DelayLine

	lastPWs [2 * comm.NumLaserDiodes]uint16
}

// New returns a Controller in the off mode.  It resets the modulation
// controller (frame id -1) and parks the attenuator near minimum power.
// The mount must already be initialized (homed).
func New(link Link, mount Mount, log *logging.Log) *Controller {
	c := &Controller{
		link:  link,
		mount: mount,
		log:   log,
		pipe:  exposure.NewPipeline(),
		rot:   exposure.NewDelayLine(),
	}

	// reset signal to the modulation controller
	link.Enqueue(comm.OutboundCommand{Fid: comm.FidReset})

	c.SetMode(program.Off)

	mount.SetAngle(thorlabs.PowerToAngle(0.1))

	return c
}

// SetMode installs the program for the given mode.  Until the source has
// been synchronized, only Off, Warmup and Sync are accepted; other modes
// are silently ignored.
func (c *Controller) SetMode(mode program.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.synced && !(mode == program.Sync || mode == program.Warmup || mode == program.Off) {
		return
	}

	// SSFDI modulates the high coherence channel by pulse width, so open
	// the attenuator fully
	if mode == program.SSFDI {
		c.mount.SetAngle(thorlabs.PowerToAngle(1.0))
	}

	c.mode = mode

	c.log.Appendf("MODE\t%d", int(mode))

	if mode == program.Sync {
		// remeasure the delay from scratch
		c.bufferOffset = 0
		c.prgrm = program.Off.Program()
		c.synced = false
	} else {
		c.prgrm = mode.Program()
		c.pipe.Reset()
		c.rot.Reset()
	}

	c.counter = 0
}

// Advance moves to the next two steps of the current program.  Call once
// per frame grab with the mean channel intensities of the odd and even
// fields in BGR order.  Exactly one outbound command is emitted per call,
// and at most one telemetry record is drained.
func (c *Controller) Advance(oddBGR, evenBGR [3]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// output power for odd and even fields
	var pwrs [2 * comm.NumLaserDiodes]float64

	switch {
	case c.mode == program.Sync && !c.synced:
		c.syncStep(oddBGR, pwrs[:])

	case c.mode == program.Warmup:
		for n := 0; n < comm.NumLaserDiodes; n++ {
			pwrs[n] = c.prgrm[0].Weights[n]
			pwrs[comm.NumLaserDiodes+n] = c.prgrm[1].Weights[n]
		}
		c.counter += 2

	default:
		c.fieldStep(oddBGR, pwrs[:], 0)
		c.fieldStep(evenBGR, pwrs[:], comm.NumLaserDiodes)
	}

	// convert the laser output powers to pulse width lengths
	var pws [2 * comm.NumLaserDiodes]uint16
	for n, pwr := range pwrs {
		pws[n] = uint16(math.Round(util.Clamp(PWMax*pwr, 0, PWMax)))
	}

	// in LSCI mode the high coherence channel runs at a constant pulse
	// width on both fields and its power rides on the attenuator instead
	if c.mode == program.LSCI {
		pws[hcIdx] = PWLSCI
		pws[comm.NumLaserDiodes+hcIdx] = PWLSCI
		c.rotationStep(evenBGR)
	}

	oc := comm.OutboundCommand{Fid: c.fid, PulseWidths: pws}
	c.link.Enqueue(oc)
	c.lastPWs = pws

	c.log.Appendf("PWS\t%d,%s", oc.Fid, util.Uint16SliceToCSV(pws[:]))

	// receive photodiode voltages from the modulation controller if available
	if tel, ok := c.link.TryDequeue(); ok {
		if tel.Fid == comm.FidError {
			c.log.Append("ERR")
		} else {
			c.log.Appendf("PDV\t%d,%s", tel.Fid, util.Uint16SliceToCSV(tel.Voltages[:]))
		}
	}

	c.fid++
}

// syncStep runs one frame of the synchronization procedure: flash once,
// then widen the assumed delay until the flash shows up in the odd field.
func (c *Controller) syncStep(oddBGR [3]float64, pwrs []float64) {
	if c.bufferOffset == 0 {
		// sync just started, emit the flash with every diode enabled on
		// the odd field
		for n := 0; n < comm.NumLaserDiodes; n++ {
			pwrs[n] = 1.0
		}
		c.bufferOffset += 2
	} else {
		if (oddBGR[0]+oddBGR[1]+oddBGR[2])/3 > SyncDetectThreshold {
			c.synced = true
			c.log.Append("SYNCED")
			c.log.Appendf("BUFF\t%d", c.bufferOffset)
		} else {
			c.bufferOffset += 2
		}
	}

	// both image fields elapse per frame
	c.counter += 2
}

// fieldStep advances the program by one image field: pair the arriving
// observation with the power that produced it, update the feedback loop,
// and assign the next emission to the diodes the current step enables.
// base is 0 for the odd field and NumLaserDiodes for the even field.
func (c *Controller) fieldStep(bgr [3]float64, pwrs []float64, base int) {
	length := len(c.prgrm)
	prgrmIdx := c.counter % length

	// once the delay has elapsed, arriving intensities correspond to
	// deliberate emissions and feed the loop
	if c.counter >= c.bufferOffset {
		frameIdx := (c.counter - c.bufferOffset) % length
		prevIntensity := channelMean(bgr, c.prgrm[frameIdx].Channel)

		c.log.Appendf("VALS\t%f", prevIntensity)

		prevPwr := c.pipe.PopEmitted()
		newPwr := exposure.Clamp(exposure.Update(prevIntensity, prevPwr))
		c.pipe.PushUpdated(newPwr)
	}

	// once the counter reaches the delay rounded up to a whole number of
	// program passes, emissions come from the feedback loop; before that,
	// the bootstrap power
	var newPwr float64
	if c.counter >= length*util.CeilDiv(c.bufferOffset, length) {
		newPwr, _ = c.pipe.PopUpdated()
	} else {
		newPwr = exposure.PwrStart
	}

	c.pipe.PushEmitted(newPwr)

	for n, w := range c.prgrm[prgrmIdx].Weights {
		if w > 0 {
			pwrs[base+n] = newPwr * w
		}
	}

	c.counter++
}

// rotationStep closes the attenuator servo for the high coherence channel
// off the red mean of the even field
func (c *Controller) rotationStep(evenBGR [3]float64) {
	// park at PwrStart until the first commanded power has been observed,
	// buffer offset fields after it was sent
	var newPwr float64
	if c.counter > c.bufferOffset {
		intensity := evenBGR[2]
		prevPwr := c.rot.Pop()
		newPwr = exposure.Clamp(exposure.Update(intensity, prevPwr))
	} else {
		newPwr = exposure.PwrStart
	}

	c.rot.Push(newPwr)
	c.mount.SetAngle(thorlabs.PowerToAngle(newPwr))
	c.log.Appendf("ROTN\t%f", newPwr)
}

// channelMean selects the scalar observation for a step's autoexposure
// channel from BGR-ordered means
func channelMean(bgr [3]float64, ch program.Channel) float64 {
	switch ch {
	case program.Blue:
		return bgr[0]
	case program.Green:
		return bgr[1]
	case program.Red:
		return bgr[2]
	default: // Mono
		return (bgr[0] + bgr[1] + bgr[2]) / 3
	}
}

// Mode returns the current illumination mode
func (c *Controller) Mode() program.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Synced returns whether the source is frame synchronized
func (c *Controller) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// BufferOffset returns the measured emission-to-observation delay in fields
func (c *Controller) BufferOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferOffset
}

// Counter returns the number of program steps taken since the mode started
func (c *Controller) Counter() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// ProgramLength returns the number of steps in the current program
func (c *Controller) ProgramLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prgrm)
}

// LastPulseWidths returns the pulse widths of the most recent outbound
// command, odd field then even field
func (c *Controller) LastPulseWidths() [2 * comm.NumLaserDiodes]uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPWs
}

// Close forces the source off, flushes the final command, and releases the
// serial link and the rotation mount
func (c *Controller) Close() error {
	c.SetMode(program.Off)

	c.mu.Lock()
	c.link.Enqueue(comm.OutboundCommand{Fid: c.fid})
	c.fid++
	c.mu.Unlock()

	// give the worker a couple of ticks to put the off command on the wire
	time.Sleep(2 * comm.PollingInterval)

	err := c.link.Close()
	if cerr := c.mount.Close(); err == nil {
		err = cerr
	}
	return err
}
