// Package checksum implements the integrity checks used by update packages:
// the customized CRC16 over APP block headers and payload chunks, and the
// SHA-256 component digests of BIN packages.
package checksum

// CRC16 parameters used by APP containers.
const (
	DefaultInitial    uint16 = 0xFFFF
	DefaultPolynomial uint16 = 0x8408
	DefaultXorOut     uint16 = 0xFFFF

	// CheckValue is the checksum of the ASCII string "123456789".
	CheckValue uint16 = 0x906E
)

// CRC16 is a reversed-polynomial, table-driven 16-bit CRC.
type CRC16 struct {
	initial    uint16
	polynomial uint16
	xorOut     uint16
	table      [256]uint16
}

// NewCRC16 builds the lookup table for the given parameters.
func NewCRC16(initial, polynomial, xorOut uint16) *CRC16 {
	c := &CRC16{
		initial:    initial,
		polynomial: polynomial,
		xorOut:     xorOut,
	}
	for i := range 256 {
		var value uint16
		temp := uint16(i)
		for range 8 {
			if (value^temp)&0x0001 != 0 {
				value = (value >> 1) ^ polynomial
			} else {
				value >>= 1
			}
			temp >>= 1
		}
		c.table[i] = value
	}
	return c
}

// Checksum computes the CRC of data, starting from the initial value.
func (c *CRC16) Checksum(data []byte) uint16 {
	return c.update(c.initial, data) ^ c.xorOut
}

func (c *CRC16) update(state uint16, data []byte) uint16 {
	for _, b := range data {
		state = (state >> 8) ^ c.table[byte(state)^b]
	}
	return state
}

var updateCRC = NewCRC16(DefaultInitial, DefaultPolynomial, DefaultXorOut)

// Checksum computes the APP CRC16 of data.
func Checksum(data []byte) uint16 {
	return updateCRC.Checksum(data)
}
