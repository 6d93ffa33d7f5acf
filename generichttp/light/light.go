// Package light exposes control of the illumination program engine over HTTP
package light

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"strconv"

	"github.com/DurrLab/MLE/comm"
	"github.com/DurrLab/MLE/generichttp"
	"github.com/DurrLab/MLE/program"
	"github.com/DurrLab/MLE/server"

	"goji.io"
	"goji.io/pat"
)

// Controller is the per-frame illumination state machine as seen by the
// user interface
type Controller interface {
	// Mode returns the current illumination mode
	Mode() program.Mode

	// SetMode installs the program for a mode; pre-sync requests for
	// imaging modes are silently ignored
	SetMode(program.Mode)

	// Synced returns whether the source is frame synchronized
	Synced() bool

	// Counter returns steps taken since the mode started
	Counter() int

	// ProgramLength returns the number of steps in the current program
	ProgramLength() int

	// BufferOffset returns the measured emission-to-observation delay
	BufferOffset() int

	// LastPulseWidths returns the most recent outbound pulse widths
	LastPulseWidths() [2 * comm.NumLaserDiodes]uint16

	// Advance consumes one frame's odd and even field channel means in
	// BGR order
	Advance(oddBGR, evenBGR [3]float64)
}

// HTTPLight wraps a Controller in an HTTP route table
type HTTPLight struct {
	// Ctl is the underlying illumination controller
	Ctl Controller

	mux *goji.Mux
}

// NewHTTPLight returns a new HTTP wrapper around an existing controller
func NewHTTPLight(ctl Controller) HTTPLight {
	h := HTTPLight{Ctl: ctl}
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/mode"), GetMode(ctl))
	mux.HandleFunc(pat.Post("/mode"), SetMode(ctl))
	mux.HandleFunc(pat.Get("/synced"), generichttp.GetBool(func() (bool, error) { return ctl.Synced(), nil }))
	mux.HandleFunc(pat.Get("/counter"), generichttp.GetInt(func() (int, error) { return ctl.Counter(), nil }))
	mux.HandleFunc(pat.Get("/program-length"), generichttp.GetInt(func() (int, error) { return ctl.ProgramLength(), nil }))
	mux.HandleFunc(pat.Get("/buffer-offset"), generichttp.GetInt(func() (int, error) { return ctl.BufferOffset(), nil }))
	mux.HandleFunc(pat.Get("/pw"), GetPulseWidths(ctl))
	mux.HandleFunc(pat.Get("/pw/:index"), GetPulseWidth(ctl))
	mux.HandleFunc(pat.Post("/frame"), PostFrame(ctl))
	h.mux = mux
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPLight) RT() *goji.Mux {
	return h.mux
}

// GetMode returns an HTTP handler func that returns the current mode name
func GetMode(c Controller) http.HandlerFunc {
	return generichttp.GetString(func() (string, error) {
		return c.Mode().String(), nil
	})
}

// SetMode returns an HTTP handler func that switches the illumination
// mode by name.  An unknown name errors; a pre-sync request for an
// imaging mode succeeds without changing state, mirroring the controller.
func SetMode(c Controller) http.HandlerFunc {
	return generichttp.SetString(func(s string) error {
		m, ok := program.ParseMode(s)
		if !ok {
			return fmt.Errorf("unknown mode %q", s)
		}
		c.SetMode(m)
		return nil
	})
}

// Frame is one frame-arrival event: mean channel intensities of the odd
// and even fields in BGR order
type Frame struct {
	Odd  [3]float64 `json:"odd"`
	Even [3]float64 `json:"even"`
}

// PostFrame returns an HTTP handler func that delivers one frame's channel
// means to the controller.  This is the per-frame call the frame grabber
// makes when it runs out of process.
func PostFrame(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := Frame{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.Advance(f.Odd, f.Even)
		w.WriteHeader(http.StatusOK)
	}
}

// GetPulseWidths returns an HTTP handler func that returns the most recent
// outbound pulse widths as a JSON array, odd field then even field
func GetPulseWidths(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pws := c.LastPulseWidths()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(pws[:])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// GetPulseWidth returns an HTTP handler func that returns a single diode's
// last pulse width by index
func GetPulseWidth(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idxS := pat.Param(r, "index")
		idx, err := strconv.Atoi(idxS)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pws := c.LastPulseWidths()
		if idx < 0 || idx >= len(pws) {
			http.Error(w, fmt.Sprintf("index %d out of range [0, %d)", idx, len(pws)), http.StatusBadRequest)
			return
		}
		hp := server.HumanPayload{T: types.Int, Int: int(pws[idx])}
		hp.EncodeAndRespond(w, r)
	}
}
