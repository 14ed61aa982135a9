package bytecode

// CRCSeed is the initial value the firmware uses when validating the
// persistent section and the cartridge header.
const CRCSeed uint16 = 0xB68F

// CRC16Update folds data into a running CCITT-style CRC using the
// byte-swap and shift form, which needs no lookup table on the device.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc>>8 | crc<<8
		crc ^= uint16(b)
		crc ^= (crc & 0xff) >> 4
		crc ^= crc << 12
		crc ^= (crc & 0xff) << 5
	}
	return crc
}

// CRC16 checksums data starting from CRCSeed.
func CRC16(data []byte) uint16 {
	return CRC16Update(CRCSeed, data)
}
