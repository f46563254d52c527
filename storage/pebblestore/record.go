package pebblestore

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: body | crc32c(body)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	out = append(out, body...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(body, castagnoli))
	return append(out, crcb[:]...)
}

func decodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 4 {
		return nil, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), body...), true
}
