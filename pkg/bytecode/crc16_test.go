package bytecode

import "testing"

func TestCRC16Deterministic(t *testing.T) {
	data := []byte("persistent section contents")
	if CRC16(data) != CRC16(data) {
		t.Error("CRC16 should be deterministic")
	}
	if CRC16(nil) != CRCSeed {
		t.Errorf("CRC16(nil) = 0x%04X, want seed 0x%04X", CRC16(nil), CRCSeed)
	}
}

func TestCRC16Incremental(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0xFF, 0x00, 0x7F}
	whole := CRC16(data)
	split := CRC16Update(CRC16Update(CRCSeed, data[:3]), data[3:])
	if whole != split {
		t.Errorf("incremental CRC = 0x%04X, want 0x%04X", split, whole)
	}
}

func TestCRC16DetectsSingleByteChange(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 7)
	}
	base := CRC16(data)

	for i := range data {
		for _, delta := range []byte{0x01, 0x80, 0xFF} {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= delta
			if CRC16(mutated) == base {
				t.Errorf("flipping byte %d by 0x%02X did not change the CRC", i, delta)
			}
		}
	}
}
