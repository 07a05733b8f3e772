package tsinject

import (
	"errors"
	"fmt"

	"github.com/Comcast/gots/v2/packet"
)

const (
	// PacketSize is the fixed MPEG-TS packet length.
	PacketSize = packet.PacketSize
	headerSize = 4
	// maxPID is the highest PID usable for data; 0x1FFF is the null PID.
	maxPID = 0x1FFE
	// PacketsPerDatagram is the customary TS-over-UDP payload (1316 bytes).
	PacketsPerDatagram = 7
)

var errEmptySection = errors.New("empty section")

// Packetize splits a PSI section into TS packets on pid. The first packet
// carries payload_unit_start_indicator and a zero pointer_field; unused bytes
// are 0xFF stuffing. cc is the continuity counter for the first packet; the
// counter for the next call is returned.
func Packetize(section []byte, pid uint16, cc uint8) ([]byte, uint8, error) {
	if len(section) == 0 {
		return nil, cc, errEmptySection
	}
	if pid > maxPID {
		return nil, cc, fmt.Errorf("pid 0x%04x out of range", pid)
	}

	payload := make([]byte, 0, len(section)+1)
	payload = append(payload, 0x00)
	payload = append(payload, section...)

	count := (len(payload) + PacketSize - headerSize - 1) / (PacketSize - headerSize)
	out := make([]byte, 0, count*PacketSize)
	for i := range count {
		pkt := packet.New()
		pkt.SetPID(int(pid))
		pkt.SetPayloadUnitStartIndicator(i == 0)
		pkt.SetContinuityCounter(int(cc))
		cc = (cc + 1) & 0x0F

		// PSI sections stuff with 0xFF rather than an adaptation field.
		for j := headerSize; j < PacketSize; j++ {
			pkt[j] = 0xFF
		}
		n := packet.SetPayload(pkt, payload)
		payload = payload[n:]
		out = append(out, pkt[:]...)
	}
	return out, cc, nil
}
