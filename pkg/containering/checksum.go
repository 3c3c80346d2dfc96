package containering

import (
	"fmt"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"

	"github.com/avmux/compositor-core/internal/pipeerr"
)

var (
	tsCRCTable  = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)
	flvCRCTable = crc8.MakeTable(crc8.CRC8)
)

// ValidateTSPacket checks a trailing two-byte integrity trailer this
// pipeline appends to buffered MPEG-TS packets crossing a storage or
// retransmission boundary upstream of ingest; real 188-byte MPEG-TS
// packets carry no such per-packet field (PSI sections use CRC32
// instead). RTMP/HLS segment ingest (spec §4.5) rejects a packet that
// fails this check as CodeCorruptPacket rather than feeding a torn
// frame into the discontinuity tracker.
func ValidateTSPacket(packet []byte) error {
	if len(packet) < 3 {
		return pipeerr.New(pipeerr.CodeCorruptPacket, fmt.Errorf("TS packet shorter than checksum trailer"))
	}
	body := packet[:len(packet)-2]
	want := uint16(packet[len(packet)-2])<<8 | uint16(packet[len(packet)-1])
	got := crc16.Checksum(body, tsCRCTable)
	if got != want {
		return pipeerr.New(pipeerr.CodeCorruptPacket, fmt.Errorf("TS packet CRC16 mismatch: want %#x got %#x", want, got))
	}
	return nil
}

// ValidateFLVTag checks the same kind of appended integrity trailer as
// ValidateTSPacket, for FLV tags. A real FLV tag's trailer is a 4-byte
// PreviousTagSize field (the tag's own length), not a checksum; this
// guards the pipeline's internal buffering path instead.
func ValidateFLVTag(tag []byte) error {
	if len(tag) < 2 {
		return pipeerr.New(pipeerr.CodeCorruptPacket, fmt.Errorf("FLV tag shorter than checksum trailer"))
	}
	body := tag[:len(tag)-1]
	want := tag[len(tag)-1]
	got := crc8.Checksum(body, flvCRCTable)
	if got != want {
		return pipeerr.New(pipeerr.CodeCorruptPacket, fmt.Errorf("FLV tag CRC8 mismatch: want %#x got %#x", want, got))
	}
	return nil
}
