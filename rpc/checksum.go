package rpc

import (
	"encoding/binary"
	"hash/crc32"
)

// Checksum calculates and verifies the trailer appended to every frame's payload. The
// checksum covers the payload only, never the header.
type Checksum interface {
	// Size is the number of trailer bytes the checksum occupies on the wire
	Size() int
	// Calculate writes the checksum of data into out, which is exactly Size() bytes long
	Calculate(data []byte, out []byte)
	// Verify returns true if checksum is the correct trailer for data
	Verify(data []byte, checksum []byte) bool
}

// CRC32 is the IEEE CRC-32 of the payload, transmitted big-endian
type CRC32 struct{}

var _ Checksum = CRC32{}

func (CRC32) Size() int { return 4 }

func (CRC32) Calculate(data []byte, out []byte) {
	binary.BigEndian.PutUint32(out, crc32.ChecksumIEEE(data))
}

func (c CRC32) Verify(data []byte, checksum []byte) bool {
	return len(checksum) == c.Size() && binary.BigEndian.Uint32(checksum) == crc32.ChecksumIEEE(data)
}

// CRC16 is CRC-16/CCITT-FALSE (polynomial 0x1021, initial value 0xFFFF) of the payload,
// transmitted big-endian
type CRC16 struct{}

var _ Checksum = CRC16{}

const (
	crc16Polynomial uint16 = 0x1021
	crc16Initial    uint16 = 0xFFFF
)

func crc16CCITT(data []byte) uint16 {
	crc := crc16Initial
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func (CRC16) Size() int { return 2 }

func (CRC16) Calculate(data []byte, out []byte) {
	binary.BigEndian.PutUint16(out, crc16CCITT(data))
}

func (c CRC16) Verify(data []byte, checksum []byte) bool {
	return len(checksum) == c.Size() && binary.BigEndian.Uint16(checksum) == crc16CCITT(data)
}
