package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/DurrLab/MLE/comm"
	"github.com/DurrLab/MLE/lightctl"
	"github.com/DurrLab/MLE/logging"
	"github.com/DurrLab/MLE/program"
	"github.com/DurrLab/MLE/thorlabs"

	"golang.org/x/time/rate"
)

const (
	// simFPS is the frame rate of the simulated grabber
	simFPS = 30

	// simGain is the linear optical gain of the simulated scene:
	// mean intensity per unit emitted power, saturating at 255
	simGain = 4.0 * 255

	// simFrames is how many WLE frames to run after synchronizing
	simFrames = 30
)

// observe applies the simulated optics to an emitted power
func observe(pwr float64) float64 {
	y := simGain * pwr
	if y > 255 {
		y = 255
	}
	return y
}

// sim runs the full acquisition sequence against simulated optics: sync,
// then white light with the autoexposure loop closed through a two field
// delay line, paced at the grabber's frame rate.
func sim() {
	ctl := lightctl.New(comm.NewLink(nil), thorlabs.NewMockMount(), logging.New(os.Stdout))
	defer ctl.Close()

	limiter := rate.NewLimiter(rate.Limit(simFPS), 1)
	ctx := context.Background()

	// emitted diode-0 powers in flight to the simulated video processor
	pending := []float64{0, 0}

	step := func() (odd, even float64) {
		if err := limiter.Wait(ctx); err != nil {
			log.Fatal(err)
		}
		odd, even = observe(pending[0]), observe(pending[1])
		pending = pending[2:]
		ctl.Advance([3]float64{odd, odd, odd}, [3]float64{even, even, even})
		pws := ctl.LastPulseWidths()
		pending = append(pending,
			float64(pws[0])/lightctl.PWMax,
			float64(pws[comm.NumLaserDiodes])/lightctl.PWMax)
		return odd, even
	}

	ctl.SetMode(program.Sync)
	for !ctl.Synced() {
		step()
	}
	fmt.Printf("synchronized, buffer offset %d fields\n", ctl.BufferOffset())

	ctl.SetMode(program.WLE)
	for i := 0; i < simFrames; i++ {
		_, even := step()
		pws := ctl.LastPulseWidths()
		fmt.Printf("frame %2d  pw %5d us  power %.4f  mean %6.2f\n",
			i, pws[0], float64(pws[0])/lightctl.PWMax, even)
	}
}
