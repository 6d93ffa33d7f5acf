package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/DurrLab/MLE/comm"
	"github.com/DurrLab/MLE/generichttp"
	"github.com/DurrLab/MLE/generichttp/light"
	"github.com/DurrLab/MLE/lightctl"
	"github.com/DurrLab/MLE/logging"
	"github.com/DurrLab/MLE/thorlabs"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/theckman/yacspin"
)

// Config holds the initialization parameters for the illumination server.
// It is populated from the yaml config file.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	// Endpoint is the URL stem the light routes are served under,
	// ex. Endpoint="/mle/light" produces routes of /mle/light/mode, etc.
	Endpoint string `yaml:"Endpoint"`

	// SerialPort is the USB serial port of the light modulation controller,
	// e.g. /dev/ttyACM0 or COM6
	SerialPort string `yaml:"SerialPort"`

	// MountPort is the USB serial port of the KBD101 rotation mount cube
	MountPort string `yaml:"MountPort"`

	// MountSerial is the serial number of the rotation mount, checked
	// against the connected cube before any motion
	MountSerial int `yaml:"MountSerial"`

	// LogFile is the path of the acquisition record log
	LogFile string `yaml:"LogFile"`

	// Mock substitutes in-memory devices for the serial hardware
	Mock bool `yaml:"Mock"`
}

// mount is the subset of the rotation stage used here, satisfied by both
// the KBD101 and its mock
type mount interface {
	Initialize() error
	SetAngle(float64) error
	Close() error
}

// buildController assembles the device stack described by the config:
// record log, serial link, homed rotation mount, controller.
func buildController(c Config) (*lightctl.Controller, *logging.Log) {
	lg, err := logging.NewFile(c.LogFile)
	if err != nil {
		log.Fatalf("could not open log file %s: %v", c.LogFile, err)
	}

	var link *comm.Link
	var mnt mount
	if c.Mock {
		link = comm.NewLink(nil)
		mnt = thorlabs.NewMockMount()
	} else {
		link, _ = comm.Open(c.SerialPort) // absence already logged, not fatal
		mnt = thorlabs.NewKBD101(c.MountPort, c.MountSerial)
	}

	spin, _ := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " homing rotation mount",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	spin.Start()
	if err := mnt.Initialize(); err != nil {
		spin.StopFail()
		// continue without the attenuator; moves will be refused and the
		// control loop absorbs that
		log.Println(err)
	} else {
		spin.Stop()
	}

	return lightctl.New(link, mnt, lg), lg
}

// BuildMux wraps the controller in the HTTP interface and mounts it on a
// chi router at the configured endpoint
func BuildMux(c Config, ctl *lightctl.Controller) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	h := light.NewHTTPLight(ctl)
	// "mle/light" => "/mle/light/*"
	full := generichttp.SubMuxSanitize(c.Endpoint)
	stem := strings.TrimSuffix(full, "/*")
	root.Handle(full, http.StripPrefix(stem, h.RT()))
	return root
}

// serve runs the HTTP server until the process is signalled, then tears
// the controller down (mode off, queues flushed, devices closed)
func serve(c Config, ctl *lightctl.Controller, lg *logging.Log, sig chan os.Signal) {
	mux := BuildMux(c, ctl)
	srv := &http.Server{Addr: c.Addr, Handler: mux}
	go func() {
		log.Println("now listening for requests at", c.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-sig
	log.Println("shutting down")
	srv.Close()
	ctl.Close()
	lg.Close()
}
