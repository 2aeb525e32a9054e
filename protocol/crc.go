package protocol

// CRC polynomials used by the G2 firmware.
const (
	crc16Poly  uint16 = 0x1021
	crc16Init  uint16 = 0xFFFF
	crc32CPoly uint32 = 0x1EDC6F41 // Castagnoli, MSB-first form
)

// crc32CTable is the non-reflected Castagnoli lookup table. It is not the
// table from hash/crc32, which is built for the reflected (LSB-first) variant.
var crc32CTable = makeCRC32CTable()

func makeCRC32CTable() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ crc32CPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// CRC16CCITT computes the frame trailer checksum over a payload.
// Init 0xFFFF, poly 0x1021, MSB-first, no final XOR.
func CRC16CCITT(data []byte) uint16 {
	crc := crc16Init
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC32C computes the MSB-first CRC-32C used in the notification FILE_CHECK
// header. Init 0, no final XOR.
func CRC32C(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = crc<<8 ^ crc32CTable[b^byte(crc>>24)]
	}
	return crc
}

// FileCheckFields derives the size, checksum and extra byte of a FILE_CHECK
// header from the file contents. The packing matches what the firmware
// expects bit for bit.
func FileCheckFields(data []byte) (size uint32, checksum uint32, extra byte) {
	crc := CRC32C(data)
	size = uint32(len(data)) * 256
	checksum = crc << 8
	extra = byte(crc >> 24)
	return size, checksum, extra
}
