package jdwp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
	}{
		{
			name: "command with payload",
			p:    Packet{ID: 7, CmdSet: CmdSetVirtualMachine, Cmd: CmdVMVersion, Data: []byte{1, 2, 3}},
		},
		{
			name: "command without payload",
			p:    Packet{ID: 1, CmdSet: CmdSetVirtualMachine, Cmd: CmdVMAllThreads},
		},
		{
			name: "reply",
			p:    Packet{ID: 7, Flags: FlagReply, Data: []byte{0xde, 0xad}},
		},
		{
			name: "error reply",
			p:    Packet{ID: 9, Flags: FlagReply, ErrorCode: ErrCodeInvalidObject},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WritePacket(&buf, &tt.p); err != nil {
				t.Fatalf("WritePacket: %v", err)
			}

			got, err := ReadPacket(&buf)
			if err != nil {
				t.Fatalf("ReadPacket: %v", err)
			}
			if got.ID != tt.p.ID || got.Flags != tt.p.Flags {
				t.Errorf("header mismatch: got id=%d flags=%#x, want id=%d flags=%#x",
					got.ID, got.Flags, tt.p.ID, tt.p.Flags)
			}
			if got.IsReply() {
				if got.ErrorCode != tt.p.ErrorCode {
					t.Errorf("error code = %d, want %d", got.ErrorCode, tt.p.ErrorCode)
				}
			} else {
				if got.CmdSet != tt.p.CmdSet || got.Cmd != tt.p.Cmd {
					t.Errorf("command = %d/%d, want %d/%d", got.CmdSet, got.Cmd, tt.p.CmdSet, tt.p.Cmd)
				}
			}
			if !bytes.Equal(got.Data, tt.p.Data) {
				t.Errorf("payload = %v, want %v", got.Data, tt.p.Data)
			}
		})
	}
}

func TestReadPacketRejectsBadLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{name: "shorter than header", length: 5},
		{name: "absurdly large", length: 1 << 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := make([]byte, headerSize)
			binary.BigEndian.PutUint32(header[0:4], tt.length)

			_, err := ReadPacket(bytes.NewReader(header))
			if !errors.Is(err, ErrMalformedPacket) {
				t.Fatalf("err = %v, want ErrMalformedPacket", err)
			}
		})
	}
}

func TestReadPacketTruncated(t *testing.T) {
	var buf bytes.Buffer
	p := Packet{ID: 3, CmdSet: 1, Cmd: 1, Data: []byte{1, 2, 3, 4}}
	if err := WritePacket(&buf, &p); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	// Drop the last payload byte.
	short := buf.Bytes()[:buf.Len()-1]
	_, err := ReadPacket(bytes.NewReader(short))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}
