package checksum

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of the fixed APP block header.
	HeaderSize = 98

	// HeaderChecksumOffset is where the header CRC is stored inside the header.
	HeaderChecksumOffset = 92
)

// HeaderChecksum computes the CRC16 of an APP block header with its embedded
// checksum field treated as zero. header is not modified.
func HeaderChecksum(header []byte) (uint16, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("header too short: got %d bytes, expected %d", len(header), HeaderSize)
	}

	var tmp [HeaderSize]byte
	copy(tmp[:], header[:HeaderSize])
	tmp[HeaderChecksumOffset] = 0
	tmp[HeaderChecksumOffset+1] = 0

	return Checksum(tmp[:]), nil
}

// StoredHeaderChecksum returns the checksum recorded in the header.
func StoredHeaderChecksum(header []byte) uint16 {
	return binary.LittleEndian.Uint16(header[HeaderChecksumOffset:])
}

// VerifyHeader recomputes the header CRC and compares it to the stored value.
func VerifyHeader(header []byte) (expected, actual uint16, ok bool, err error) {
	actual, err = HeaderChecksum(header)
	if err != nil {
		return 0, 0, false, err
	}
	expected = StoredHeaderChecksum(header)
	return expected, actual, expected == actual, nil
}
