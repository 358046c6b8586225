// Package bufferutil implements the canonical byte encoding used by export
// bundles: little-endian fixed-width integers, varint length-prefixed byte
// strings, and versioned records framed by a class id and a class version.
package bufferutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrShortRead ...
	ErrShortRead = errors.New("unexpected end of serialized stream")
	// ErrRecordMismatch ...
	ErrRecordMismatch = errors.New("serialized record has unexpected class id")
	// ErrUnsupportedRecordVersion ...
	ErrUnsupportedRecordVersion = errors.New("serialized record has unsupported version")
)

// Serializer accumulates a canonical byte stream.
type Serializer struct {
	buf bytes.Buffer
}

// NewSerializer returns an empty serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Bytes returns the accumulated stream.
func (s *Serializer) Bytes() []byte {
	return s.buf.Bytes()
}

// WriteUint8 ...
func (s *Serializer) WriteUint8(v uint8) {
	s.buf.WriteByte(v)
}

// WriteUint32 ...
func (s *Serializer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	s.buf.Write(b[:])
}

// WriteUint64 ...
func (s *Serializer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	s.buf.Write(b[:])
}

// WriteBool ...
func (s *Serializer) WriteBool(v bool) {
	if v {
		s.buf.WriteByte(1)
		return
	}
	s.buf.WriteByte(0)
}

// WriteVarBytes writes a varint length prefix followed by the raw bytes.
func (s *Serializer) WriteVarBytes(b []byte) {
	_ = wire.WriteVarInt(&s.buf, 0, uint64(len(b)))
	s.buf.Write(b)
}

// WriteString ...
func (s *Serializer) WriteString(str string) {
	s.WriteVarBytes([]byte(str))
}

// WriteUint32Slice ...
func (s *Serializer) WriteUint32Slice(vs []uint32) {
	_ = wire.WriteVarInt(&s.buf, 0, uint64(len(vs)))
	for _, v := range vs {
		s.WriteUint32(v)
	}
}

// BeginRecord frames the start of a versioned record.
func (s *Serializer) BeginRecord(classID uint8, classVersion uint8) {
	s.WriteUint8(classID)
	s.WriteUint8(classVersion)
}

// Deserializer walks a canonical byte stream.
type Deserializer struct {
	r *bytes.Reader
}

// NewDeserializer wraps a byte stream.
func NewDeserializer(b []byte) *Deserializer {
	return &Deserializer{r: bytes.NewReader(b)}
}

// Remaining returns how many bytes are left unread.
func (d *Deserializer) Remaining() int {
	return d.r.Len()
}

// ReadUint8 ...
func (d *Deserializer) ReadUint8() (uint8, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, ErrShortRead
	}
	return b, nil
}

// ReadUint32 ...
func (d *Deserializer) ReadUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, ErrShortRead
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadUint64 ...
func (d *Deserializer) ReadUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, ErrShortRead
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadBool ...
func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadVarBytes ...
func (d *Deserializer) ReadVarBytes() ([]byte, error) {
	n, err := wire.ReadVarInt(d.r, 0)
	if err != nil {
		return nil, ErrShortRead
	}
	if n > uint64(d.r.Len()) {
		return nil, ErrShortRead
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, ErrShortRead
	}
	return b, nil
}

// ReadString ...
func (d *Deserializer) ReadString() (string, error) {
	b, err := d.ReadVarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadUint32Slice ...
func (d *Deserializer) ReadUint32Slice() ([]uint32, error) {
	n, err := wire.ReadVarInt(d.r, 0)
	if err != nil {
		return nil, ErrShortRead
	}
	if n > uint64(d.r.Len()) {
		return nil, ErrShortRead
	}
	vs := make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// ExpectRecord consumes a record frame, failing when the class id does not
// match or the version is zero or newer than maxVersion.
func (d *Deserializer) ExpectRecord(classID uint8, maxVersion uint8) (uint8, error) {
	id, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}
	if id != classID {
		return 0, ErrRecordMismatch
	}
	version, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}
	if version == 0 || version > maxVersion {
		return 0, ErrUnsupportedRecordVersion
	}
	return version, nil
}
