package jdwptest

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// Server serves a VM model over real TCP frames. Every identifier is 8
// bytes wide, matching what mainstream JVMs report.
type Server struct {
	vm *VM
	ln net.Listener

	mu     sync.Mutex
	conns  []net.Conn
	closed bool
}

// Start listens on a loopback port and serves vm until the test ends.
func Start(t *testing.T, vm *VM) *Server {
	t.Helper()
	s, err := Listen(vm)
	if err != nil {
		t.Fatalf("jdwptest: listen: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Listen starts serving vm on an ephemeral loopback port.
func Listen(vm *VM) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{vm: vm, ln: ln}
	go s.acceptLoop()
	return s, nil
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, portStr, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

// Close stops the listener and drops every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := s.conns
	s.mu.Unlock()

	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	banner := make([]byte, len(jdwp.Handshake))
	if _, err := io.ReadFull(conn, banner); err != nil {
		return
	}
	if string(banner) != string(jdwp.Handshake) {
		return
	}
	if _, err := conn.Write(jdwp.Handshake); err != nil {
		return
	}

	for {
		p, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		if p.IsReply() {
			continue
		}

		data, errCode := s.vm.dispatch(p.CmdSet, p.Cmd, p.Data)
		reply := &jdwp.Packet{ID: p.ID, Flags: jdwp.FlagReply, ErrorCode: errCode, Data: data}
		if errCode != 0 {
			reply.Data = nil
		}
		if err := jdwp.WritePacket(conn, reply); err != nil {
			return
		}
	}
}

// dispatch handles one command against the model.
func (vm *VM) dispatch(cmdSet, cmd byte, payload []byte) ([]byte, uint16) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	sizes := jdwp.DefaultIDSizes()
	d := jdwp.NewDecoder(sizes, payload)
	e := jdwp.NewEncoder(sizes)

	switch {
	case cmdSet == jdwp.CmdSetVirtualMachine && cmd == jdwp.CmdVMIDSizes:
		e.Int(8).Int(8).Int(8).Int(8).Int(8)

	case cmdSet == jdwp.CmdSetVirtualMachine && cmd == jdwp.CmdVMVersion:
		e.String(vm.Description).Int(1).Int(8).String(vm.VMVersion).String(vm.VMName)

	case cmdSet == jdwp.CmdSetVirtualMachine && cmd == jdwp.CmdVMAllThreads:
		e.Int(int32(len(vm.threadOrder)))
		for _, id := range vm.threadOrder {
			e.ObjectID(id)
		}

	case cmdSet == jdwp.CmdSetVirtualMachine && cmd == jdwp.CmdVMResume:
		for _, t := range vm.threads {
			if t.SuspendCount > 0 {
				t.SuspendCount--
			}
		}

	case cmdSet == jdwp.CmdSetVirtualMachine && cmd == jdwp.CmdVMCreateString:
		s := d.String()
		vm.nextID++
		id := vm.nextID
		vm.strings[id] = s
		e.ObjectID(id)

	case cmdSet == jdwp.CmdSetThreadReference:
		return vm.threadCommand(cmd, d, e)

	case cmdSet == jdwp.CmdSetStackFrame:
		return vm.frameCommand(cmd, d, e)

	case cmdSet == jdwp.CmdSetReferenceType:
		return vm.refTypeCommand(cmd, d, e)

	case cmdSet == jdwp.CmdSetClassType && cmd == jdwp.CmdClassSuperclass:
		c, ok := vm.classes[d.RefTypeID()]
		if !ok {
			return nil, jdwp.ErrCodeInvalidClass
		}
		e.RefTypeID(c.Super)

	case cmdSet == jdwp.CmdSetMethod:
		return vm.methodCommand(cmd, d, e)

	case cmdSet == jdwp.CmdSetObjectReference:
		return vm.objectCommand(cmd, d, e)

	case cmdSet == jdwp.CmdSetStringReference && cmd == jdwp.CmdStringValue:
		s, ok := vm.strings[d.ObjectID()]
		if !ok {
			return nil, jdwp.ErrCodeInvalidObject
		}
		e.String(s)

	case cmdSet == jdwp.CmdSetArrayReference:
		return vm.arrayCommand(cmd, d, e)

	default:
		return nil, 99 // NOT_IMPLEMENTED
	}

	return e.Bytes(), 0
}

func (vm *VM) threadCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	t, ok := vm.threads[d.ObjectID()]
	if !ok {
		return nil, jdwp.ErrCodeInvalidThread
	}

	switch cmd {
	case jdwp.CmdThreadName:
		e.String(t.Name)

	case jdwp.CmdThreadSuspendCount:
		e.Int(t.SuspendCount)

	case jdwp.CmdThreadFrameCount:
		if t.SuspendCount == 0 {
			return nil, jdwp.ErrCodeThreadNotSuspended
		}
		e.Int(int32(len(t.Frames)))

	case jdwp.CmdThreadFrames:
		if t.SuspendCount == 0 {
			return nil, jdwp.ErrCodeThreadNotSuspended
		}
		start := d.Int()
		length := d.Int()
		frames := t.Frames
		if int(start) > len(frames) {
			start = int32(len(frames))
		}
		frames = frames[start:]
		if length >= 0 && int(length) < len(frames) {
			frames = frames[:length]
		}
		e.Int(int32(len(frames)))
		for _, f := range frames {
			e.FrameID(f.ID)
			typeTag := byte(jdwp.TypeTagClass)
			if c, ok := vm.classes[f.Class]; ok {
				typeTag = c.TypeTag
			}
			e.Byte(typeTag).RefTypeID(f.Class).MethodID(f.Method).Long(int64(f.CodeIndex))
		}

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}

func (vm *VM) frameCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	t, ok := vm.threads[d.ObjectID()]
	if !ok {
		return nil, jdwp.ErrCodeInvalidThread
	}
	if t.SuspendCount == 0 {
		return nil, jdwp.ErrCodeThreadNotSuspended
	}
	frameID := d.FrameID()
	var frame *Frame
	for _, f := range t.Frames {
		if f.ID == frameID {
			frame = f
			break
		}
	}
	if frame == nil {
		return nil, jdwp.ErrCodeInvalidFrameID
	}

	switch cmd {
	case jdwp.CmdFrameGetValues:
		n := d.Int()
		type req struct {
			slot uint32
			tag  byte
		}
		reqs := make([]req, 0, n)
		for i := int32(0); i < n; i++ {
			reqs = append(reqs, req{slot: uint32(d.Int()), tag: d.Byte()})
		}
		e.Int(int32(len(reqs)))
		for _, r := range reqs {
			v, ok := frame.Slots[r.slot]
			if !ok {
				return nil, jdwp.ErrCodeInvalidSlot
			}
			e.Value(v)
		}

	case jdwp.CmdFrameThisObject:
		e.Byte(jdwp.TagObject).ObjectID(frame.This)

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}

func (vm *VM) refTypeCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	c, ok := vm.classes[d.RefTypeID()]
	if !ok {
		return nil, jdwp.ErrCodeInvalidClass
	}

	switch cmd {
	case jdwp.CmdRefTypeSignature:
		e.String(c.Signature)

	case jdwp.CmdRefTypeSourceFile:
		if c.SourceFile == "" {
			return nil, jdwp.ErrCodeAbsentInformation
		}
		e.String(c.SourceFile)

	case jdwp.CmdRefTypeFields:
		e.Int(int32(len(c.Fields)))
		for _, f := range c.Fields {
			e.FieldID(f.ID).String(f.Name).String(f.Signature).Int(int32(f.ModBits))
		}

	case jdwp.CmdRefTypeMethods:
		e.Int(int32(len(c.Methods)))
		for _, m := range c.Methods {
			e.MethodID(m.ID).String(m.Name).String(m.Signature).Int(int32(m.ModBits))
		}

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}

func (vm *VM) methodCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	c, ok := vm.classes[d.RefTypeID()]
	if !ok {
		return nil, jdwp.ErrCodeInvalidClass
	}
	method := d.MethodID()

	switch cmd {
	case jdwp.CmdMethodLineTable:
		lines, ok := c.lines[method]
		if !ok {
			return nil, jdwp.ErrCodeAbsentInformation
		}
		e.Long(0).Long(1 << 16).Int(int32(len(lines)))
		for _, l := range lines {
			e.Long(int64(l.CodeIndex)).Int(l.Line)
		}

	case jdwp.CmdMethodVariableTable:
		vars, ok := c.vars[method]
		if !ok {
			return nil, jdwp.ErrCodeAbsentInformation
		}
		e.Int(0).Int(int32(len(vars)))
		for _, v := range vars {
			e.Long(int64(v.CodeIndex)).String(v.Name).String(v.Signature).Int(int32(v.Length)).Int(int32(v.Slot))
		}

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}

func (vm *VM) objectCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	id := d.ObjectID()

	switch cmd {
	case jdwp.CmdObjectReferenceType:
		if o, ok := vm.objects[id]; ok {
			c := vm.classes[o.Class]
			if c == nil {
				return nil, jdwp.ErrCodeInvalidClass
			}
			e.Byte(c.TypeTag).RefTypeID(c.ID)
			break
		}
		if a, ok := vm.arrays[id]; ok {
			e.Byte(jdwp.TypeTagArray).RefTypeID(a.Class)
			break
		}
		if _, ok := vm.strings[id]; ok {
			if c := vm.stringClass(); c != nil {
				e.Byte(c.TypeTag).RefTypeID(c.ID)
				break
			}
		}
		return nil, jdwp.ErrCodeInvalidObject

	case jdwp.CmdObjectGetValues:
		o, ok := vm.objects[id]
		if !ok {
			return nil, jdwp.ErrCodeInvalidObject
		}
		n := d.Int()
		e.Int(n)
		for i := int32(0); i < n; i++ {
			v, ok := o.Fields[d.FieldID()]
			if !ok {
				v = jdwp.Value{Tag: jdwp.TagObject}
			}
			e.Value(v)
		}

	case jdwp.CmdObjectInvokeMethod:
		call := InvokeCall{
			Object: id,
			Thread: d.ObjectID(),
			Class:  d.RefTypeID(),
			Method: d.MethodID(),
		}
		n := d.Int()
		for i := int32(0); i < n; i++ {
			call.Args = append(call.Args, d.Value())
		}
		d.Int() // options

		t, ok := vm.threads[call.Thread]
		if !ok {
			return nil, jdwp.ErrCodeInvalidThread
		}
		if t.SuspendCount == 0 {
			return nil, jdwp.ErrCodeThreadNotSuspended
		}
		vm.invokes = append(vm.invokes, call)

		ret := jdwp.Value{Tag: jdwp.TagVoid}
		var exception uint64
		if vm.InvokeHook != nil {
			var errCode uint16
			ret, exception, errCode = vm.InvokeHook(call)
			if errCode != 0 {
				return nil, errCode
			}
		}
		e.Value(ret).Byte(jdwp.TagObject).ObjectID(exception)

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}

func (vm *VM) arrayCommand(cmd byte, d *jdwp.Decoder, e *jdwp.Encoder) ([]byte, uint16) {
	a, ok := vm.arrays[d.ObjectID()]
	if !ok {
		return nil, jdwp.ErrCodeInvalidObject
	}

	switch cmd {
	case jdwp.CmdArrayLength:
		e.Int(int32(len(a.Values)))

	case jdwp.CmdArrayGetValues:
		first := d.Int()
		length := d.Int()
		if int(first) > len(a.Values) {
			first = int32(len(a.Values))
		}
		values := a.Values[first:]
		if length >= 0 && int(length) < len(values) {
			values = values[:length]
		}
		e.Byte(a.Tag).Int(int32(len(values)))
		tagged := jdwp.Value{Tag: a.Tag}.IsObject()
		for _, v := range values {
			if tagged {
				e.Value(v)
			} else {
				e.UntaggedValue(v)
			}
		}

	default:
		return nil, 99
	}

	return e.Bytes(), 0
}
