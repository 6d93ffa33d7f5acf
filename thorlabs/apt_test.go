package thorlabs

import (
	"testing"
)

func TestEncodeShortHeader(t *testing.T) {
	buf := encodeShort(msgMotMoveHome, channel, 0)
	if len(buf) != headerSize {
		t.Fatalf("short message is %d bytes, expected %d", len(buf), headerSize)
	}
	if buf[0] != 0x43 || buf[1] != 0x04 {
		t.Errorf("message id encoded %#x %#x, expected little-endian 0x0443", buf[0], buf[1])
	}
	if buf[2] != channel {
		t.Errorf("param1 = %d, expected channel %d", buf[2], channel)
	}
	if buf[4] != genericUSBAddr || buf[5] != hostAddr {
		t.Errorf("addressing = %#x -> %#x, expected %#x -> %#x", buf[5], buf[4], hostAddr, genericUSBAddr)
	}
}

func TestEncodeLongRoundTrip(t *testing.T) {
	data := moveAbsoluteData(channel, 270*PosScaleFactor)
	buf := encodeLong(msgMotMoveAbsolute, data)
	m, dataLen, err := decodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != msgMotMoveAbsolute {
		t.Errorf("decoded id %#x, expected %#x", m.ID, msgMotMoveAbsolute)
	}
	if dataLen != len(data) {
		t.Errorf("decoded data length %d, expected %d", dataLen, len(data))
	}
	if m.Dest&longMsgFlag == 0 {
		t.Error("long message flag not set on dest")
	}
}

func TestMoveAbsoluteData(t *testing.T) {
	data := moveAbsoluteData(channel, 1080000) // 270 degrees
	if got := dataOrder.Uint16(data[0:2]); got != channel {
		t.Errorf("channel = %d, expected %d", got, channel)
	}
	if got := int32(dataOrder.Uint32(data[2:6])); got != 1080000 {
		t.Errorf("counts = %d, expected 1080000", got)
	}
}

func TestVelParamsData(t *testing.T) {
	data := velParamsData(channel, 0, Acceleration*PosScaleFactor, Velocity*PosScaleFactor)
	if len(data) != 14 {
		t.Fatalf("velparams packet is %d bytes, expected 14", len(data))
	}
	if got := int32(dataOrder.Uint32(data[6:10])); got != Acceleration*PosScaleFactor {
		t.Errorf("acceleration = %d, expected %d", got, Acceleration*PosScaleFactor)
	}
	if got := int32(dataOrder.Uint32(data[10:14])); got != Velocity*PosScaleFactor {
		t.Errorf("max velocity = %d, expected %d", got, Velocity*PosScaleFactor)
	}
}

func TestSerialFromHWInfo(t *testing.T) {
	data := make([]byte, 84)
	dataOrder.PutUint32(data[0:4], 28252094)
	sn, err := serialFromHWInfo(data)
	if err != nil {
		t.Fatal(err)
	}
	if sn != 28252094 {
		t.Errorf("serial = %d, expected 28252094", sn)
	}
	if _, err := serialFromHWInfo(data[:3]); err == nil {
		t.Error("expected an error on a truncated packet")
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, _, err := decodeHeader([]byte{1, 2, 3}); err != ErrShortHeader {
		t.Errorf("decodeHeader on 3 bytes = %v, expected ErrShortHeader", err)
	}
}

func TestPowerToAngle(t *testing.T) {
	cases := []struct{ pwr, want float64 }{
		{0, RotAngleMin},
		{1, RotAngleMax},
		{0.5, (RotAngleMax + RotAngleMin) / 2.0},
	}
	for _, tc := range cases {
		if got := PowerToAngle(tc.pwr); got != tc.want {
			t.Errorf("PowerToAngle(%f) = %f, expected %f", tc.pwr, got, tc.want)
		}
	}
}
