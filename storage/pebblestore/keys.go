package pebblestore

import "encoding/binary"

// Keyspace (byte-wise, lexicographically sortable):
// - ev/{stream}/{id_be8}
// - sub/{id}
// - cur/{sub_id}/{stream}

var (
	sep       = byte('/')
	evPrefix  = []byte("ev/")
	subPrefix = []byte("sub/")
	curPrefix = []byte("cur/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyEvent builds the event key with a big-endian id for proper ordering.
func keyEvent(stream string, id uint64) []byte {
	k := make([]byte, 0, len(evPrefix)+len(stream)+9)
	k = append(k, evPrefix...)
	k = append(k, stream...)
	k = append(k, sep)
	return appendBE8(k, id)
}

func keySubscription(id string) []byte {
	k := make([]byte, 0, len(subPrefix)+len(id))
	k = append(k, subPrefix...)
	k = append(k, id...)
	return k
}

func keyCursor(subID, stream string) []byte {
	k := make([]byte, 0, len(curPrefix)+len(subID)+len(stream)+1)
	k = append(k, curPrefix...)
	k = append(k, subID...)
	k = append(k, sep)
	k = append(k, stream...)
	return k
}
