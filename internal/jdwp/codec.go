package jdwp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder builds a command payload. All multi-byte values are
// big-endian; identifier widths come from the negotiated IDSizes.
type Encoder struct {
	sizes IDSizes
	buf   []byte
}

// NewEncoder returns an encoder using the given identifier sizes.
func NewEncoder(sizes IDSizes) *Encoder {
	return &Encoder{sizes: sizes}
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Byte(v byte) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.Byte(1)
	}
	return e.Byte(0)
}

func (e *Encoder) Int(v int32) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	return e
}

func (e *Encoder) Long(v int64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	return e
}

func (e *Encoder) String(s string) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
	return e
}

func (e *Encoder) id(v uint64, width int) *Encoder {
	for i := width - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
	return e
}

func (e *Encoder) ObjectID(v uint64) *Encoder  { return e.id(v, e.sizes.ObjectID) }
func (e *Encoder) RefTypeID(v uint64) *Encoder { return e.id(v, e.sizes.ReferenceTypeID) }
func (e *Encoder) MethodID(v uint64) *Encoder  { return e.id(v, e.sizes.MethodID) }
func (e *Encoder) FieldID(v uint64) *Encoder   { return e.id(v, e.sizes.FieldID) }
func (e *Encoder) FrameID(v uint64) *Encoder   { return e.id(v, e.sizes.FrameID) }

// Value appends a tagged value.
func (e *Encoder) Value(v Value) *Encoder {
	e.Byte(v.Tag)
	return e.untaggedValue(v)
}

// UntaggedValue appends a value without its tag byte (primitive array
// regions carry the tag once for the whole region).
func (e *Encoder) UntaggedValue(v Value) *Encoder { return e.untaggedValue(v) }

func (e *Encoder) untaggedValue(v Value) *Encoder {
	switch v.Tag {
	case TagVoid:
	case TagBoolean, TagByte:
		e.Byte(byte(v.Int))
	case TagChar, TagShort:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v.Int))
	case TagInt:
		e.Int(int32(v.Int))
	case TagLong:
		e.Long(v.Int)
	case TagFloat:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(v.Float)))
	case TagDouble:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(v.Float))
	default:
		e.ObjectID(v.Object)
	}
	return e
}

// Decoder reads a reply payload. Errors are sticky: after the first
// short read every subsequent call returns zero values, and Err
// reports the failure.
type Decoder struct {
	sizes IDSizes
	data  []byte
	off   int
	err   error
}

// NewDecoder returns a decoder over data using the given id sizes.
func NewDecoder(sizes IDSizes, data []byte) *Decoder {
	return &Decoder{sizes: sizes, data: data}
}

// Err returns the first decoding failure, if any.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the number of unread payload bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.off }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.data) {
		d.err = fmt.Errorf("%w: payload truncated at offset %d", ErrMalformedPacket, d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) Byte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool { return d.Byte() != 0 }

func (d *Decoder) Int() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *Decoder) Long() int64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (d *Decoder) String() string {
	n := d.Int()
	if n < 0 {
		d.err = fmt.Errorf("%w: negative string length", ErrMalformedPacket)
		return ""
	}
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (d *Decoder) id(width int) uint64 {
	b := d.take(width)
	if b == nil {
		return 0
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func (d *Decoder) ObjectID() uint64  { return d.id(d.sizes.ObjectID) }
func (d *Decoder) RefTypeID() uint64 { return d.id(d.sizes.ReferenceTypeID) }
func (d *Decoder) MethodID() uint64  { return d.id(d.sizes.MethodID) }
func (d *Decoder) FieldID() uint64   { return d.id(d.sizes.FieldID) }
func (d *Decoder) FrameID() uint64   { return d.id(d.sizes.FrameID) }

// Location reads an executable location.
func (d *Decoder) Location() Location {
	return Location{
		TypeTag:  d.Byte(),
		ClassID:  d.RefTypeID(),
		MethodID: d.MethodID(),
		Index:    uint64(d.Long()),
	}
}

// Value reads a tagged value.
func (d *Decoder) Value() Value {
	tag := d.Byte()
	return d.UntaggedValue(tag)
}

// UntaggedValue reads a value whose tag is known from context
// (primitive array regions carry the tag once for the whole region).
func (d *Decoder) UntaggedValue(tag byte) Value {
	v := Value{Tag: tag}
	switch tag {
	case TagVoid:
	case TagBoolean, TagByte:
		v.Int = int64(d.Byte())
	case TagChar, TagShort:
		b := d.take(2)
		if b != nil {
			if tag == TagShort {
				v.Int = int64(int16(binary.BigEndian.Uint16(b)))
			} else {
				v.Int = int64(binary.BigEndian.Uint16(b))
			}
		}
	case TagInt:
		v.Int = int64(d.Int())
	case TagLong:
		v.Int = d.Long()
	case TagFloat:
		b := d.take(4)
		if b != nil {
			v.Float = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		}
	case TagDouble:
		b := d.take(8)
		if b != nil {
			v.Float = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
	case TagObject, TagString, TagArray, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		v.Object = d.ObjectID()
	default:
		d.err = fmt.Errorf("%w: unknown value tag %q", ErrMalformedPacket, tag)
	}
	return v
}

// TaggedObjectID reads a tag byte followed by an object id.
func (d *Decoder) TaggedObjectID() (byte, uint64) {
	tag := d.Byte()
	return tag, d.ObjectID()
}
