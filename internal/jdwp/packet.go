// Package jdwp implements a client for the Java Debug Wire Protocol:
// packet framing, the payload codec, a connection manager that matches
// replies to requests by packet id, and typed wrappers for the commands
// the bridge needs.
//
// JDWP frames are binary, big-endian:
//
//	length(4) id(4) flags(1) | command: cmdset(1) cmd(1)
//	                         | reply (flag 0x80): errorCode(2)
//
// followed by a command-specific payload. A session opens with both
// sides exchanging the 14 ASCII bytes "JDWP-Handshake".
package jdwp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize = 11

	// FlagReply marks a packet as a reply to a command.
	FlagReply = 0x80

	// maxPacketSize bounds a single packet. Anything larger is treated
	// as stream corruption rather than a legitimate payload.
	maxPacketSize = 64 << 20
)

// Handshake is the fixed byte sequence exchanged when a session opens.
var Handshake = []byte("JDWP-Handshake")

// ErrMalformedPacket indicates transport corruption: a frame whose
// length or flags are inconsistent. It is fatal to the connection.
var ErrMalformedPacket = errors.New("malformed jdwp packet")

// Packet is one JDWP frame, either a command or a reply.
type Packet struct {
	ID        uint32
	Flags     byte
	CmdSet    byte
	Cmd       byte
	ErrorCode uint16
	Data      []byte
}

// IsReply reports whether the packet is a reply to a command.
func (p *Packet) IsReply() bool { return p.Flags&FlagReply != 0 }

// WritePacket serializes a packet to w as a single frame.
func WritePacket(w io.Writer, p *Packet) error {
	buf := make([]byte, headerSize+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.BigEndian.PutUint32(buf[4:8], p.ID)
	buf[8] = p.Flags
	if p.IsReply() {
		binary.BigEndian.PutUint16(buf[9:11], p.ErrorCode)
	} else {
		buf[9] = p.CmdSet
		buf[10] = p.Cmd
	}
	copy(buf[headerSize:], p.Data)
	_, err := w.Write(buf)
	return err
}

// ReadPacket reads exactly one frame from r. It blocks until a full
// packet is available and never delivers a partial one.
func ReadPacket(r io.Reader) (*Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < headerSize || length > maxPacketSize {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedPacket, length)
	}

	p := &Packet{
		ID:    binary.BigEndian.Uint32(header[4:8]),
		Flags: header[8],
	}
	if p.IsReply() {
		p.ErrorCode = binary.BigEndian.Uint16(header[9:11])
	} else {
		p.CmdSet = header[9]
		p.Cmd = header[10]
	}

	if payload := length - headerSize; payload > 0 {
		p.Data = make([]byte, payload)
		if _, err := io.ReadFull(r, p.Data); err != nil {
			return nil, err
		}
	}

	return p, nil
}
