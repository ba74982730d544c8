package backend

import "encoding/binary"

// Buffer is the free-standing byte-vector helper spec.md's Design Notes
// call for (the teacher's equivalent is hand-writing formatted text lines
// in pkg/hack/codegen.go; this is the same role one level lower, emitting
// raw bytes instead of formatted instruction text).
type Buffer struct {
	b []byte
}

func (buf *Buffer) Bytes() []byte { return buf.b }
func (buf *Buffer) Len() int      { return len(buf.b) }

func (buf *Buffer) db(v byte) int {
	off := len(buf.b)
	buf.b = append(buf.b, v)
	return off
}

func (buf *Buffer) dw(v uint16) int {
	off := len(buf.b)
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
	return off
}

func (buf *Buffer) dd(v uint32) int {
	off := len(buf.b)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
	return off
}

func (buf *Buffer) dq(v uint64) int {
	off := len(buf.b)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
	return off
}

func (buf *Buffer) bytes(v []byte) int {
	off := len(buf.b)
	buf.b = append(buf.b, v...)
	return off
}

// setU32 patches a little-endian 32-bit value already written at off,
// used to close out forward-jump and relocation placeholders.
func (buf *Buffer) setU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(buf.b[off:off+4], v)
}
