package thorlabs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// messages are encoded per the Thorlabs APT protocol: a six byte header
// [MSGID.lo MSGID.hi PARAM1 PARAM2 DEST SOURCE], where long messages set
// the high bit of DEST and replace PARAM1/PARAM2 with the byte count of a
// trailing data packet.  All fields are little-endian.  There is no
// checksum.

const (
	// hostAddr is the APT bus address of the host PC
	hostAddr = 0x01

	// genericUSBAddr is the APT bus address of a USB-connected unit
	genericUSBAddr = 0x50

	// longMsgFlag marks a header as carrying a data packet
	longMsgFlag = 0x80

	// headerSize is the wire size of an APT header
	headerSize = 6
)

// APT message IDs used by the KBD101
const (
	msgModIdentify        = 0x0223
	msgSetChanEnableState = 0x0210
	msgHWReqInfo          = 0x0005
	msgHWGetInfo          = 0x0006
	msgHWStartUpdateMsgs  = 0x0011
	msgHWStopUpdateMsgs   = 0x0012
	msgMotSetVelParams    = 0x0413
	msgMotMoveHome        = 0x0443
	msgMotMoveHomed       = 0x0444
	msgMotMoveAbsolute    = 0x0453
	msgMotMoveCompleted   = 0x0464
	msgMotGetStatusUpdate = 0x0481
)

// dataOrder is the APT byte order
var dataOrder = binary.LittleEndian

// ErrShortHeader is generated when fewer than six bytes are presented as a header
var ErrShortHeader = errors.New("APT header is six bytes")

// aptMessage is a decoded APT message
type aptMessage struct {
	ID     uint16
	Param1 byte
	Param2 byte
	Dest   byte
	Source byte
	Data   []byte
}

// encodeShort packs a header-only message
func encodeShort(id uint16, param1, param2 byte) []byte {
	buf := make([]byte, headerSize)
	dataOrder.PutUint16(buf[0:2], id)
	buf[2] = param1
	buf[3] = param2
	buf[4] = genericUSBAddr
	buf[5] = hostAddr
	return buf
}

// encodeLong packs a message with a trailing data packet
func encodeLong(id uint16, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	dataOrder.PutUint16(buf[0:2], id)
	dataOrder.PutUint16(buf[2:4], uint16(len(data)))
	buf[4] = genericUSBAddr | longMsgFlag
	buf[5] = hostAddr
	copy(buf[headerSize:], data)
	return buf
}

// decodeHeader splits a six byte header and reports the length of the data
// packet that follows, zero for short messages
func decodeHeader(buf []byte) (aptMessage, int, error) {
	if len(buf) < headerSize {
		return aptMessage{}, 0, ErrShortHeader
	}
	m := aptMessage{
		ID:     dataOrder.Uint16(buf[0:2]),
		Param1: buf[2],
		Param2: buf[3],
		Dest:   buf[4],
		Source: buf[5],
	}
	if m.Dest&longMsgFlag != 0 {
		return m, int(dataOrder.Uint16(buf[2:4])), nil
	}
	return m, 0, nil
}

// moveAbsoluteData packs the payload of MOT_MOVE_ABSOLUTE for a channel and
// a position in encoder counts
func moveAbsoluteData(channel uint16, counts int32) []byte {
	buf := make([]byte, 6)
	dataOrder.PutUint16(buf[0:2], channel)
	dataOrder.PutUint32(buf[2:6], uint32(counts))
	return buf
}

// velParamsData packs the payload of MOT_SET_VELPARAMS: channel, minimum
// velocity, acceleration, maximum velocity, all in device units
func velParamsData(channel uint16, minVel, accel, maxVel int32) []byte {
	buf := make([]byte, 14)
	dataOrder.PutUint16(buf[0:2], channel)
	dataOrder.PutUint32(buf[2:6], uint32(minVel))
	dataOrder.PutUint32(buf[6:10], uint32(accel))
	dataOrder.PutUint32(buf[10:14], uint32(maxVel))
	return buf
}

// serialFromHWInfo extracts the unit serial number from a HW_GET_INFO data
// packet
func serialFromHWInfo(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("HW_GET_INFO packet truncated, %d bytes", len(data))
	}
	return int(dataOrder.Uint32(data[0:4])), nil
}
