package comm

import (
	"encoding/binary"
	"fmt"
)

// the records below mirror the structs compiled into the modulation
// controller firmware.  Both are fixed size with natural alignment and no
// padding; changing a field width breaks the wire format.

const (
	// NumLaserDiodes is the number of modulation controller laser diode channels
	NumLaserDiodes = 15

	// NumPhotoDiodes is the number of modulation controller photodiode channels
	NumPhotoDiodes = 3

	// FidReset is the frame id sent to reset the modulation controller
	FidReset = -1

	// FidError is the frame id sent by the modulation controller to
	// indicate a runtime error
	FidError = -2

	// OutboundSize is the wire size of an OutboundCommand in bytes
	OutboundSize = 4 + 2*2*NumLaserDiodes

	// InboundSize is the wire size of an InboundTelemetry in bytes
	InboundSize = 4 + 2*2*NumPhotoDiodes
)

// dataOrder is the byte order of the modulation controller
var dataOrder = binary.LittleEndian

// OutboundCommand carries one frame of pulse widths to the modulation
// controller: a frame id followed by one pulse width per diode for the odd
// field, then one per diode for the even field, in microseconds.
type OutboundCommand struct {
	Fid         int32
	PulseWidths [2 * NumLaserDiodes]uint16
}

// InboundTelemetry carries one frame of power monitoring photodiode
// voltages from the modulation controller, odd field then even field.
type InboundTelemetry struct {
	Fid      int32
	Voltages [2 * NumPhotoDiodes]uint16
}

// Encode serializes the command to its wire representation
func (oc OutboundCommand) Encode() []byte {
	buf := make([]byte, OutboundSize)
	dataOrder.PutUint32(buf[0:4], uint32(oc.Fid))
	for i, pw := range oc.PulseWidths {
		dataOrder.PutUint16(buf[4+2*i:], pw)
	}
	return buf
}

// DecodeTelemetry deserializes one telemetry record from its wire
// representation
func DecodeTelemetry(buf []byte) (InboundTelemetry, error) {
	var it InboundTelemetry
	if len(buf) < InboundSize {
		return it, fmt.Errorf("telemetry record needs %d bytes, got %d", InboundSize, len(buf))
	}
	it.Fid = int32(dataOrder.Uint32(buf[0:4]))
	for i := range it.Voltages {
		it.Voltages[i] = dataOrder.Uint16(buf[4+2*i:])
	}
	return it, nil
}
