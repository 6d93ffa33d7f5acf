package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "mlesrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:        ":8000",
		Endpoint:    "/mle/light",
		SerialPort:  "/dev/ttyACM0",
		MountPort:   "/dev/ttyUSB0",
		MountSerial: 28252094,
		LogFile:     "mle.txt"}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `mlesrv drives the multi-contrast laser endoscopy illumination source
and exposes an HTTP interface to it.  The frame grabber delivers per-frame
channel means to POST <endpoint>/frame; the terminal UI switches modes with
POST <endpoint>/mode.

Usage:
	mlesrv <command>

Commands:
	run
	sim
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `mlesrv is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Config fields:
- Addr           address to listen at, e.g. :8000
- Endpoint       URL stem for the light routes, e.g. /mle/light
- SerialPort     serial port of the light modulation controller (Teensy)
- MountPort      serial port of the KBD101 rotation mount cube
- MountSerial    rotation mount serial number
- LogFile        path of the acquisition record log
- Mock           true substitutes in-memory devices for the hardware

Routes served under the endpoint:
- GET/POST /mode           illumination mode by name (OFF, WLE, PSE, LSCI,
                           MULTI, SSFDI, WARMUP, SYNC)
- GET      /synced         whether the source is frame synchronized
- GET      /counter        program steps since the mode started
- GET      /program-length steps in the current program
- GET      /buffer-offset  measured emission-to-observation delay, fields
- GET      /pw, /pw/:index last outbound pulse widths (microseconds)
- POST     /frame          one frame's odd/even field channel means (BGR)

The sync procedure must be run (POST /mode SYNC) before the imaging modes
unlock; until then requests for them succeed without changing state.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("mlesrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	ctl, lg := buildController(c)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	serve(c, ctl, lg, sig)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "sim":
		sim()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
