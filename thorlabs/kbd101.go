/*Package thorlabs enables working with Thorlabs K-Cube brushless motor
controllers.

The KBD101 drives the direct drive rotation mount holding the half-wave
plate that attenuates the high coherence channel.  The cube speaks the APT
binary protocol over its USB virtual com port; this package implements the
subset needed here: identity check, channel enable, velocity programming,
homing and absolute moves.  Initialization is a one-shot blocking routine
run before the acquisition loop starts; SetAngle never blocks on motion.
*/
package thorlabs

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tarm/serial"
)

const (
	// PosScaleFactor converts degrees to encoder counts on the DDR stage
	PosScaleFactor = 4000

	// Velocity is the programmed move velocity (degrees/sec)
	Velocity = 1800

	// Acceleration is the programmed move acceleration (degrees/sec/sec)
	Acceleration = 10476

	// RotAngleMin is the half-wave plate angle for minimum power (degrees)
	RotAngleMin = 265

	// RotAngleMax is the half-wave plate angle for maximum power (degrees)
	RotAngleMax = 310

	// channel is the motor channel; K-Cubes are single channel
	channel = 1

	// statusInterval is the period the cube emits status updates at (ms)
	statusInterval = 3
)

// PowerToAngle converts an illumination power in [0, 1] to a half-wave
// plate angle in degrees
func PowerToAngle(power float64) float64 {
	return (RotAngleMax-RotAngleMin)*power + RotAngleMin
}

// KBD101 represents a KBD101 brushless DC servo controller driving a
// rotation stage
type KBD101 struct {
	addr     string
	serialNo int

	conn io.ReadWriteCloser

	initialized bool
}

// NewKBD101 returns a KBD101 which will connect at addr and verify the
// device serial number on Initialize
func NewKBD101(addr string, serialNo int) *KBD101 {
	return &KBD101{addr: addr, serialNo: serialNo}
}

// makeSerConf makes a serial config for a K-Cube VCP
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        115200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 50 * time.Millisecond}
}

// Initialize opens the cube, checks its serial number, enables the channel,
// programs velocity and acceleration, homes the stage and blocks until the
// cube reports the home sequence complete.  It must be called before
// SetAngle, from the main thread, before the frame loop is engaged.
func (k *KBD101) Initialize() error {
	conn, err := serial.OpenPort(makeSerConf(k.addr))
	if err != nil {
		return fmt.Errorf("rotation mount not found at %s: %w", k.addr, err)
	}
	k.conn = conn

	// the cube may have buffered status updates from a previous run
	k.flush()

	// confirm we are talking to the right cube before moving anything
	if _, err := conn.Write(encodeShort(msgHWReqInfo, 0, 0)); err != nil {
		return err
	}
	m, err := k.await(msgHWGetInfo)
	if err != nil {
		return err
	}
	sn, err := serialFromHWInfo(m.Data)
	if err != nil {
		return err
	}
	if sn != k.serialNo {
		return fmt.Errorf("rotation mount serial %d does not match configured %d", sn, k.serialNo)
	}
	log.Printf("connected to rotation mount %d", k.serialNo)

	if _, err := conn.Write(encodeShort(msgHWStartUpdateMsgs, statusInterval, 0)); err != nil {
		return err
	}
	// param2: 0x01 enable
	if _, err := conn.Write(encodeShort(msgSetChanEnableState, channel, 0x01)); err != nil {
		return err
	}
	time.Sleep(1 * time.Second)

	vel := velParamsData(channel, 0, Acceleration*PosScaleFactor, Velocity*PosScaleFactor)
	if _, err := conn.Write(encodeLong(msgMotSetVelParams, vel)); err != nil {
		return err
	}

	if _, err := conn.Write(encodeShort(msgMotMoveHome, channel, 0)); err != nil {
		return err
	}
	log.Println("homing rotation mount...")
	if _, err := k.await(msgMotMoveHomed); err != nil {
		return err
	}

	k.initialized = true
	return nil
}

// SetAngle commands an absolute move to the given angle in degrees.  It
// writes the move message and returns without waiting for completion.
func (k *KBD101) SetAngle(deg float64) error {
	if !k.initialized {
		return fmt.Errorf("rotation mount %d is not initialized", k.serialNo)
	}
	counts := int32(deg * PosScaleFactor)
	_, err := k.conn.Write(encodeLong(msgMotMoveAbsolute, moveAbsoluteData(channel, counts)))
	return err
}

// Close stops the cube's status updates and closes the port
func (k *KBD101) Close() error {
	if k.conn == nil {
		return nil
	}
	k.conn.Write(encodeShort(msgHWStopUpdateMsgs, 0, 0))
	return k.conn.Close()
}

// flush discards any buffered bytes on the port
func (k *KBD101) flush() {
	buf := make([]byte, 256)
	for {
		n, err := k.conn.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// await reads messages off the port until one with the wanted ID arrives,
// discarding others (the cube streams status updates while it moves)
func (k *KBD101) await(id uint16) (aptMessage, error) {
	for {
		m, err := k.readMessage()
		if err != nil {
			return aptMessage{}, err
		}
		if m.ID == id {
			return m, nil
		}
	}
}

// readMessage reads one full APT message, looping over the port's short
// timeout reads until the header and any data packet are complete
func (k *KBD101) readMessage() (aptMessage, error) {
	hdr, err := k.readFull(headerSize)
	if err != nil {
		return aptMessage{}, err
	}
	m, dataLen, err := decodeHeader(hdr)
	if err != nil {
		return aptMessage{}, err
	}
	if dataLen > 0 {
		m.Data, err = k.readFull(dataLen)
		if err != nil {
			return aptMessage{}, err
		}
	}
	return m, nil
}

func (k *KBD101) readFull(n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	tmp := make([]byte, n)
	for len(buf) < n {
		nr, err := k.conn.Read(tmp[:n-len(buf)])
		if nr > 0 {
			buf = append(buf, tmp[:nr]...)
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
	}
	return buf, nil
}
