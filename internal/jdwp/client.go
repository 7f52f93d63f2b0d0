package jdwp

import "context"

// Typed wrappers for the JDWP commands the bridge issues. Each method
// is one protocol round trip; reply error codes surface as
// *CommandError for the caller to classify.

// Version fetches the target VM's self-description.
func (c *Conn) Version(ctx context.Context) (VersionInfo, error) {
	data, err := c.Send(ctx, CmdSetVirtualMachine, CmdVMVersion, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	d := NewDecoder(c.sizes, data)
	v := VersionInfo{
		Description: d.String(),
		JDWPMajor:   d.Int(),
		JDWPMinor:   d.Int(),
		VMVersion:   d.String(),
		VMName:      d.String(),
	}
	return v, d.Err()
}

// AllThreads lists every live thread id, in target order.
func (c *Conn) AllThreads(ctx context.Context) ([]uint64, error) {
	data, err := c.Send(ctx, CmdSetVirtualMachine, CmdVMAllThreads, nil)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	ids := make([]uint64, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		ids = append(ids, d.ObjectID())
	}
	return ids, d.Err()
}

// ResumeVM resumes every thread in the target.
func (c *Conn) ResumeVM(ctx context.Context) error {
	_, err := c.Send(ctx, CmdSetVirtualMachine, CmdVMResume, nil)
	return err
}

// CreateString materializes a string in the target VM and returns its id.
func (c *Conn) CreateString(ctx context.Context, s string) (uint64, error) {
	payload := NewEncoder(c.sizes).String(s).Bytes()
	data, err := c.Send(ctx, CmdSetVirtualMachine, CmdVMCreateString, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	id := d.ObjectID()
	return id, d.Err()
}

// ThreadName fetches a thread's name.
func (c *Conn) ThreadName(ctx context.Context, thread uint64) (string, error) {
	payload := NewEncoder(c.sizes).ObjectID(thread).Bytes()
	data, err := c.Send(ctx, CmdSetThreadReference, CmdThreadName, payload)
	if err != nil {
		return "", err
	}
	d := NewDecoder(c.sizes, data)
	name := d.String()
	return name, d.Err()
}

// SuspendCount fetches how many pending suspensions a thread has.
// A count of zero means the thread is running.
func (c *Conn) SuspendCount(ctx context.Context, thread uint64) (int32, error) {
	payload := NewEncoder(c.sizes).ObjectID(thread).Bytes()
	data, err := c.Send(ctx, CmdSetThreadReference, CmdThreadSuspendCount, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	return n, d.Err()
}

// FrameCount fetches the stack depth of a suspended thread.
func (c *Conn) FrameCount(ctx context.Context, thread uint64) (int32, error) {
	payload := NewEncoder(c.sizes).ObjectID(thread).Bytes()
	data, err := c.Send(ctx, CmdSetThreadReference, CmdThreadFrameCount, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	return n, d.Err()
}

// Frames fetches frames of a suspended thread. Index 0 is the current
// (innermost) frame; length -1 means all remaining frames.
func (c *Conn) Frames(ctx context.Context, thread uint64, start, length int32) ([]Frame, error) {
	payload := NewEncoder(c.sizes).ObjectID(thread).Int(start).Int(length).Bytes()
	data, err := c.Send(ctx, CmdSetThreadReference, CmdThreadFrames, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	frames := make([]Frame, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		frames = append(frames, Frame{ID: d.FrameID(), Location: d.Location()})
	}
	return frames, d.Err()
}

// FrameValues reads variable slots from a stack frame.
func (c *Conn) FrameValues(ctx context.Context, thread, frame uint64, slots []SlotRequest) ([]Value, error) {
	e := NewEncoder(c.sizes).ObjectID(thread).FrameID(frame).Int(int32(len(slots)))
	for _, s := range slots {
		e.Int(int32(s.Slot)).Byte(s.Tag)
	}
	data, err := c.Send(ctx, CmdSetStackFrame, CmdFrameGetValues, e.Bytes())
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	values := make([]Value, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		values = append(values, d.Value())
	}
	return values, d.Err()
}

// ThisObject reads the receiver of a stack frame, 0 for static frames.
func (c *Conn) ThisObject(ctx context.Context, thread, frame uint64) (uint64, error) {
	payload := NewEncoder(c.sizes).ObjectID(thread).FrameID(frame).Bytes()
	data, err := c.Send(ctx, CmdSetStackFrame, CmdFrameThisObject, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	_, id := d.TaggedObjectID()
	return id, d.Err()
}

// VariableTable fetches the variable table of a method.
func (c *Conn) VariableTable(ctx context.Context, class, method uint64) ([]Variable, error) {
	payload := NewEncoder(c.sizes).RefTypeID(class).MethodID(method).Bytes()
	data, err := c.Send(ctx, CmdSetMethod, CmdMethodVariableTable, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	d.Int() // argCnt, unused
	n := d.Int()
	vars := make([]Variable, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		vars = append(vars, Variable{
			CodeIndex: uint64(d.Long()),
			Name:      d.String(),
			Signature: d.String(),
			Length:    uint32(d.Int()),
			Slot:      uint32(d.Int()),
		})
	}
	return vars, d.Err()
}

// LineEntry maps a code index to a source line.
type LineEntry struct {
	CodeIndex uint64
	Line      int32
}

// LineTable fetches the line number table of a method.
func (c *Conn) LineTable(ctx context.Context, class, method uint64) ([]LineEntry, error) {
	payload := NewEncoder(c.sizes).RefTypeID(class).MethodID(method).Bytes()
	data, err := c.Send(ctx, CmdSetMethod, CmdMethodLineTable, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	d.Long() // start
	d.Long() // end
	n := d.Int()
	lines := make([]LineEntry, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		lines = append(lines, LineEntry{CodeIndex: uint64(d.Long()), Line: d.Int()})
	}
	return lines, d.Err()
}

// TypeSignature fetches the JNI signature of a reference type.
func (c *Conn) TypeSignature(ctx context.Context, refType uint64) (string, error) {
	payload := NewEncoder(c.sizes).RefTypeID(refType).Bytes()
	data, err := c.Send(ctx, CmdSetReferenceType, CmdRefTypeSignature, payload)
	if err != nil {
		return "", err
	}
	d := NewDecoder(c.sizes, data)
	sig := d.String()
	return sig, d.Err()
}

// SourceFile fetches the source file name of a reference type. Fails
// with ABSENT_INFORMATION when the class was compiled without it.
func (c *Conn) SourceFile(ctx context.Context, refType uint64) (string, error) {
	payload := NewEncoder(c.sizes).RefTypeID(refType).Bytes()
	data, err := c.Send(ctx, CmdSetReferenceType, CmdRefTypeSourceFile, payload)
	if err != nil {
		return "", err
	}
	d := NewDecoder(c.sizes, data)
	name := d.String()
	return name, d.Err()
}

// FieldsOf fetches the fields declared directly by a reference type.
func (c *Conn) FieldsOf(ctx context.Context, refType uint64) ([]FieldInfo, error) {
	payload := NewEncoder(c.sizes).RefTypeID(refType).Bytes()
	data, err := c.Send(ctx, CmdSetReferenceType, CmdRefTypeFields, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	fields := make([]FieldInfo, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		fields = append(fields, FieldInfo{
			ID:        d.FieldID(),
			Name:      d.String(),
			Signature: d.String(),
			ModBits:   uint32(d.Int()),
		})
	}
	return fields, d.Err()
}

// MethodsOf fetches the methods declared directly by a reference type.
func (c *Conn) MethodsOf(ctx context.Context, refType uint64) ([]MethodInfo, error) {
	payload := NewEncoder(c.sizes).RefTypeID(refType).Bytes()
	data, err := c.Send(ctx, CmdSetReferenceType, CmdRefTypeMethods, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	methods := make([]MethodInfo, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		methods = append(methods, MethodInfo{
			ID:        d.MethodID(),
			Name:      d.String(),
			Signature: d.String(),
			ModBits:   uint32(d.Int()),
		})
	}
	return methods, d.Err()
}

// Superclass fetches the direct superclass of a class, 0 for
// java.lang.Object.
func (c *Conn) Superclass(ctx context.Context, class uint64) (uint64, error) {
	payload := NewEncoder(c.sizes).RefTypeID(class).Bytes()
	data, err := c.Send(ctx, CmdSetClassType, CmdClassSuperclass, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	id := d.RefTypeID()
	return id, d.Err()
}

// ObjectReferenceType fetches the runtime type of an object.
func (c *Conn) ObjectReferenceType(ctx context.Context, object uint64) (typeTag byte, refType uint64, err error) {
	payload := NewEncoder(c.sizes).ObjectID(object).Bytes()
	data, err := c.Send(ctx, CmdSetObjectReference, CmdObjectReferenceType, payload)
	if err != nil {
		return 0, 0, err
	}
	d := NewDecoder(c.sizes, data)
	typeTag = d.Byte()
	refType = d.RefTypeID()
	return typeTag, refType, d.Err()
}

// ObjectValues reads instance field values from an object.
func (c *Conn) ObjectValues(ctx context.Context, object uint64, fields []uint64) ([]Value, error) {
	e := NewEncoder(c.sizes).ObjectID(object).Int(int32(len(fields)))
	for _, f := range fields {
		e.FieldID(f)
	}
	data, err := c.Send(ctx, CmdSetObjectReference, CmdObjectGetValues, e.Bytes())
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	values := make([]Value, 0, max(n, 0))
	for i := int32(0); i < n; i++ {
		values = append(values, d.Value())
	}
	return values, d.Err()
}

// InvokeResult is the outcome of a method invocation in the target:
// either a return value, or a thrown exception object (non-zero id).
type InvokeResult struct {
	Return    Value
	Exception uint64
}

// InvokeObjectMethod invokes an instance method inside the target VM.
// With InvokeSingleThreaded the VM transiently resumes only the
// invoking thread and re-suspends it on completion; cached frames for
// that thread are invalid afterwards.
func (c *Conn) InvokeObjectMethod(ctx context.Context, object, thread, class, method uint64, args []Value, options int32) (InvokeResult, error) {
	e := NewEncoder(c.sizes).ObjectID(object).ObjectID(thread).RefTypeID(class).MethodID(method)
	e.Int(int32(len(args)))
	for _, a := range args {
		e.Value(a)
	}
	e.Int(options)
	data, err := c.Send(ctx, CmdSetObjectReference, CmdObjectInvokeMethod, e.Bytes())
	if err != nil {
		return InvokeResult{}, err
	}
	d := NewDecoder(c.sizes, data)
	var res InvokeResult
	res.Return = d.Value()
	_, res.Exception = d.TaggedObjectID()
	return res, d.Err()
}

// StringValue fetches the UTF-8 contents of a string object.
func (c *Conn) StringValue(ctx context.Context, id uint64) (string, error) {
	payload := NewEncoder(c.sizes).ObjectID(id).Bytes()
	data, err := c.Send(ctx, CmdSetStringReference, CmdStringValue, payload)
	if err != nil {
		return "", err
	}
	d := NewDecoder(c.sizes, data)
	s := d.String()
	return s, d.Err()
}

// ArrayLength fetches the element count of an array object.
func (c *Conn) ArrayLength(ctx context.Context, array uint64) (int32, error) {
	payload := NewEncoder(c.sizes).ObjectID(array).Bytes()
	data, err := c.Send(ctx, CmdSetArrayReference, CmdArrayLength, payload)
	if err != nil {
		return 0, err
	}
	d := NewDecoder(c.sizes, data)
	n := d.Int()
	return n, d.Err()
}

// ArrayValues reads a range of array elements. Primitive regions carry
// one tag for the whole region; object regions are individually tagged.
func (c *Conn) ArrayValues(ctx context.Context, array uint64, first, length int32) ([]Value, error) {
	payload := NewEncoder(c.sizes).ObjectID(array).Int(first).Int(length).Bytes()
	data, err := c.Send(ctx, CmdSetArrayReference, CmdArrayGetValues, payload)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(c.sizes, data)
	tag := d.Byte()
	n := d.Int()
	values := make([]Value, 0, max(n, 0))
	tagged := Value{Tag: tag}.IsObject()
	for i := int32(0); i < n; i++ {
		if tagged {
			values = append(values, d.Value())
		} else {
			values = append(values, d.UntaggedValue(tag))
		}
	}
	return values, d.Err()
}
