/*Package comm provides the serial link to the light modulation controller.

The link owns a duplex serial port and a worker goroutine that isolates the
port's timing from the frame driver.  Outbound pulse width commands are
enqueued without blocking and drained to the port by the worker; inbound
photodiode telemetry is accumulated off the port and surfaced through a
non-blocking dequeue.  Records are fixed-size little-endian binary structs
shared with the firmware (see records.go); there is no framing and no
retransmit.  A short read leaves the partial bytes buffered for the next
worker tick.

Usage boils down to:

	link, err := comm.Open("/dev/ttyACM0")
	...
	link.Enqueue(comm.OutboundCommand{Fid: fid, PulseWidths: pws})
	if tel, ok := link.TryDequeue(); ok {
		// consume tel.Voltages
	}
	...
	link.Close()
*/
package comm

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// BaudRate is the baud rate for comms with the modulation controller
	BaudRate = 115200

	// PollingInterval is the worker loop period
	PollingInterval = 3 * time.Millisecond

	// queueDepth is the record capacity of each direction's queue.  The
	// worker drains a record every 3 ms, so this never fills at frame rate.
	queueDepth = 1024
)

// ErrLinkClosed is returned by Close when the link is already closed
var ErrLinkClosed = errors.New("serial link is closed")

// MakeSerConf makes a new serial config for the modulation controller,
// 115200 baud 8-N-1 with a short read timeout so the worker never stalls
func MakeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        BaudRate,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: time.Millisecond}
}

// Link is a threaded serial connection to the light modulation controller.
// Links must be created with Open or NewLink.
type Link struct {
	conn io.ReadWriteCloser

	out chan OutboundCommand
	in  chan InboundTelemetry

	// rx accumulates partial record bytes between worker ticks
	rx []byte

	done chan struct{}
	dead chan struct{}
}

// Open opens the serial port at addr and starts the worker.  The port open
// is retried briefly; if the device is absent the error is logged, the link
// still runs, and writes are discarded.  Physical absence of the controller
// is not fatal at startup.
func Open(addr string) (*Link, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		c, err := serial.OpenPort(MakeSerConf(addr))
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		log.Printf("modulation controller not found at %s: %v", addr, err)
	}
	return NewLink(conn), err
}

// NewLink wraps an open connection (which may be nil for an absent device)
// and starts the worker.  The receive side of conn is assumed flushed.
func NewLink(conn io.ReadWriteCloser) *Link {
	l := &Link{
		conn: conn,
		out:  make(chan OutboundCommand, queueDepth),
		in:   make(chan InboundTelemetry, queueDepth),
		done: make(chan struct{}),
		dead: make(chan struct{}),
	}
	go l.work()
	return l
}

// Enqueue appends one command to the outbound queue without blocking.  If
// the queue is somehow full the record is dropped; the control loop emits a
// fresh command next frame.
func (l *Link) Enqueue(oc OutboundCommand) {
	select {
	case l.out <- oc:
	default:
	}
}

// TryDequeue returns at most one pending telemetry record without blocking
func (l *Link) TryDequeue() (InboundTelemetry, bool) {
	select {
	case it := <-l.in:
		return it, true
	default:
		return InboundTelemetry{}, false
	}
}

// Close stops the worker cooperatively, waits for it to exit, and closes
// the port
func (l *Link) Close() error {
	select {
	case <-l.done:
		return ErrLinkClosed
	default:
	}
	close(l.done)
	<-l.dead
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// work runs on the worker goroutine: every polling interval, write one
// pending command and read one telemetry record if enough bytes have
// arrived
func (l *Link) work() {
	defer close(l.dead)
	t := time.NewTicker(PollingInterval)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.writeOne()
			l.readOne()
		}
	}
}

func (l *Link) writeOne() {
	select {
	case oc := <-l.out:
		if l.conn == nil {
			return
		}
		// a short or failed write is not retried; the device resyncs on
		// the next frame's record
		l.conn.Write(oc.Encode())
	default:
	}
}

func (l *Link) readOne() {
	if l.conn == nil {
		return
	}
	buf := make([]byte, InboundSize)
	n, err := l.conn.Read(buf)
	if n > 0 {
		l.rx = append(l.rx, buf[:n]...)
	}
	if err != nil && err != io.EOF {
		return
	}
	if len(l.rx) < InboundSize {
		return
	}
	it, err := DecodeTelemetry(l.rx[:InboundSize])
	l.rx = l.rx[InboundSize:]
	if err != nil {
		return
	}
	select {
	case l.in <- it:
	default:
	}
}
