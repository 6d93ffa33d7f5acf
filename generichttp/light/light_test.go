package light_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DurrLab/MLE/comm"
	"github.com/DurrLab/MLE/generichttp/light"
	"github.com/DurrLab/MLE/program"
)

// stubController implements light.Controller with canned state
type stubController struct {
	mode   program.Mode
	synced bool
	pws    [2 * comm.NumLaserDiodes]uint16
	frames int
	odd    [3]float64
	even   [3]float64
}

func (s *stubController) Mode() program.Mode { return s.mode }
func (s *stubController) SetMode(m program.Mode) {
	if !s.synced && !(m == program.Sync || m == program.Warmup || m == program.Off) {
		return
	}
	s.mode = m
}
func (s *stubController) Synced() bool       { return s.synced }
func (s *stubController) Counter() int       { return 12 }
func (s *stubController) ProgramLength() int { return 3 }
func (s *stubController) BufferOffset() int  { return 2 }
func (s *stubController) LastPulseWidths() [2 * comm.NumLaserDiodes]uint16 {
	return s.pws
}
func (s *stubController) Advance(odd, even [3]float64) {
	s.frames++
	s.odd = odd
	s.even = even
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetMode(t *testing.T) {
	ctl := &stubController{mode: program.LSCI, synced: true}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodGet, "/mode", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var payload struct {
		Str string `json:"str"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Str != "LSCI" {
		t.Errorf("mode = %q, expected LSCI", payload.Str)
	}
}

func TestSetMode(t *testing.T) {
	ctl := &stubController{synced: true}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodPost, "/mode", `{"str": "PSE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ctl.mode != program.PSE {
		t.Errorf("mode = %v after POST, expected PSE", ctl.mode)
	}
}

func TestSetModeUnknownName(t *testing.T) {
	ctl := &stubController{synced: true}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodPost, "/mode", `{"str": "DISCO"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status %d for unknown mode, expected 500", w.Code)
	}
	if ctl.mode != program.Off {
		t.Errorf("unknown mode name changed state to %v", ctl.mode)
	}
}

func TestSetModePreSyncIsSilentlyAccepted(t *testing.T) {
	// the request succeeds but state does not change, like the controller
	ctl := &stubController{}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodPost, "/mode", `{"str": "WLE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ctl.mode != program.Off {
		t.Errorf("pre-sync POST changed mode to %v", ctl.mode)
	}
}

func TestGetSynced(t *testing.T) {
	ctl := &stubController{synced: true}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodGet, "/synced", "")
	var payload struct {
		Bool bool `json:"bool"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if !payload.Bool {
		t.Error("synced = false, expected true")
	}
}

func TestGetPulseWidths(t *testing.T) {
	ctl := &stubController{}
	ctl.pws[14] = 7000
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodGet, "/pw", "")
	var pws []uint16
	if err := json.NewDecoder(w.Body).Decode(&pws); err != nil {
		t.Fatal(err)
	}
	if len(pws) != 2*comm.NumLaserDiodes {
		t.Fatalf("returned %d pulse widths, expected %d", len(pws), 2*comm.NumLaserDiodes)
	}
	if pws[14] != 7000 {
		t.Errorf("pw[14] = %d, expected 7000", pws[14])
	}
}

func TestPostFrame(t *testing.T) {
	ctl := &stubController{}
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodPost, "/frame", `{"odd": [10, 20, 30], "even": [40, 50, 60]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ctl.frames != 1 {
		t.Fatalf("controller advanced %d times, expected 1", ctl.frames)
	}
	if ctl.odd != [3]float64{10, 20, 30} || ctl.even != [3]float64{40, 50, 60} {
		t.Errorf("means delivered as %v / %v", ctl.odd, ctl.even)
	}
}

func TestGetPulseWidthByIndex(t *testing.T) {
	ctl := &stubController{}
	ctl.pws[3] = 2800
	h := light.NewHTTPLight(ctl).RT()
	w := serve(t, h, http.MethodGet, "/pw/3", "")
	var payload struct {
		Int int `json:"int"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Int != 2800 {
		t.Errorf("pw[3] = %d, expected 2800", payload.Int)
	}

	w = serve(t, h, http.MethodGet, "/pw/99", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d for out of range index, expected 400", w.Code)
	}
}
