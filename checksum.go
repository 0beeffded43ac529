package sensironscd41

import "github.com/sigurn/crc8"

var (
	checksumTable = crc8.MakeTable(crc8.Params{
		Poly:   0x31,
		Init:   0xFF,
		RefIn:  false,
		RefOut: false,
		XorOut: 0x00,
		Check:  0x00,
		Name:   "CRC-8/Sensiron",
	})
)

// checksum computes the CRC-8 byte trailing every 2-byte word on the wire.
// The checksum covers exactly the two preceding bytes, regardless of their
// position in a larger message.
func checksum(msb, lsb byte) byte {
	return crc8.Checksum([]byte{msb, lsb}, checksumTable)
}

// checksumValid reports whether crc matches the checksum of the given word.
func checksumValid(msb, lsb, crc byte) bool {
	return checksum(msb, lsb) == crc
}
