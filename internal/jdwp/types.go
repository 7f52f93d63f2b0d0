package jdwp

import "fmt"

// Command sets. JDWP groups commands by the kind of mirror they operate on.
const (
	CmdSetVirtualMachine  = 1
	CmdSetReferenceType   = 2
	CmdSetClassType       = 3
	CmdSetMethod          = 6
	CmdSetObjectReference = 9
	CmdSetStringReference = 10
	CmdSetThreadReference = 11
	CmdSetArrayReference  = 13
	CmdSetStackFrame      = 16
	CmdSetEvent           = 64
)

// VirtualMachine commands.
const (
	CmdVMVersion      = 1
	CmdVMAllThreads   = 4
	CmdVMIDSizes      = 7
	CmdVMSuspend      = 8
	CmdVMResume       = 9
	CmdVMCreateString = 11
)

// ReferenceType commands.
const (
	CmdRefTypeSignature  = 1
	CmdRefTypeFields     = 4
	CmdRefTypeMethods    = 5
	CmdRefTypeSourceFile = 7
)

// ClassType commands.
const (
	CmdClassSuperclass   = 1
	CmdClassInvokeMethod = 3
)

// Method commands.
const (
	CmdMethodLineTable     = 1
	CmdMethodVariableTable = 2
)

// ObjectReference commands.
const (
	CmdObjectReferenceType = 1
	CmdObjectGetValues     = 2
	CmdObjectInvokeMethod  = 6
)

// StringReference commands.
const (
	CmdStringValue = 1
)

// ThreadReference commands.
const (
	CmdThreadName         = 1
	CmdThreadSuspend      = 2
	CmdThreadResume       = 3
	CmdThreadFrames       = 6
	CmdThreadFrameCount   = 7
	CmdThreadSuspendCount = 12
)

// ArrayReference commands.
const (
	CmdArrayLength    = 1
	CmdArrayGetValues = 2
)

// StackFrame commands.
const (
	CmdFrameGetValues  = 1
	CmdFrameThisObject = 3
)

// Event commands (VM -> debugger).
const (
	CmdEventComposite = 100
)

// Value tags identify the kind of a value on the wire.
const (
	TagArray       = '['
	TagByte        = 'B'
	TagChar        = 'C'
	TagObject      = 'L'
	TagFloat       = 'F'
	TagDouble      = 'D'
	TagInt         = 'I'
	TagLong        = 'J'
	TagShort       = 'S'
	TagVoid        = 'V'
	TagBoolean     = 'Z'
	TagString      = 's'
	TagThread      = 't'
	TagThreadGroup = 'g'
	TagClassLoader = 'l'
	TagClassObject = 'c'
)

// Reference type tags.
const (
	TypeTagClass     = 1
	TypeTagInterface = 2
	TypeTagArray     = 3
)

// InvokeSingleThreaded resumes only the invoking thread for the
// duration of a method invocation.
const InvokeSingleThreaded = 0x01

// Field/method modifier bits (JVMS access flags).
const (
	ModStatic = 0x0008
)

// JDWP reply error codes used by the bridge.
const (
	ErrCodeInvalidThread      = 10
	ErrCodeThreadNotSuspended = 13
	ErrCodeInvalidObject      = 20
	ErrCodeInvalidClass       = 21
	ErrCodeInvalidMethodID    = 23
	ErrCodeInvalidFrameID     = 30
	ErrCodeInvalidSlot        = 35
	ErrCodeAbsentInformation  = 101
	ErrCodeVMDead             = 112
)

var errCodeNames = map[uint16]string{
	ErrCodeInvalidThread:      "INVALID_THREAD",
	ErrCodeThreadNotSuspended: "THREAD_NOT_SUSPENDED",
	ErrCodeInvalidObject:      "INVALID_OBJECT",
	ErrCodeInvalidClass:       "INVALID_CLASS",
	ErrCodeInvalidMethodID:    "INVALID_METHODID",
	ErrCodeInvalidFrameID:     "INVALID_FRAMEID",
	ErrCodeInvalidSlot:        "INVALID_SLOT",
	ErrCodeAbsentInformation:  "ABSENT_INFORMATION",
	ErrCodeVMDead:             "VM_DEAD",
}

// CommandError is a non-zero error code carried by a JDWP reply packet.
// The target rejected the command; the connection itself is still healthy
// (except for VM_DEAD).
type CommandError struct {
	Code uint16
}

func (e *CommandError) Error() string {
	if name, ok := errCodeNames[e.Code]; ok {
		return fmt.Sprintf("jdwp error %d (%s)", e.Code, name)
	}
	return fmt.Sprintf("jdwp error %d", e.Code)
}

// IDSizes holds the identifier widths negotiated with the target VM.
type IDSizes struct {
	FieldID         int
	MethodID        int
	ObjectID        int
	ReferenceTypeID int
	FrameID         int
}

// DefaultIDSizes matches every mainstream JVM (all ids 8 bytes).
// Used until the IDSizes handshake completes.
func DefaultIDSizes() IDSizes {
	return IDSizes{FieldID: 8, MethodID: 8, ObjectID: 8, ReferenceTypeID: 8, FrameID: 8}
}

// Value is a single JDWP value: a primitive, or an opaque reference to
// an object living in the target VM.
type Value struct {
	Tag    byte
	Int    int64   // integral primitives, char and boolean
	Float  float64 // float and double
	Object uint64  // object kinds, 0 means null
}

// IsObject reports whether the value is an object kind (including
// strings, arrays, threads and null references).
func (v Value) IsObject() bool {
	switch v.Tag {
	case TagObject, TagString, TagArray, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		return true
	}
	return false
}

// IsNull reports whether the value is a null object reference.
func (v Value) IsNull() bool {
	return v.IsObject() && v.Object == 0
}

// Location identifies a code position in the target VM.
type Location struct {
	TypeTag  byte
	ClassID  uint64
	MethodID uint64
	Index    uint64
}

// Frame is one stack frame of a suspended thread.
type Frame struct {
	ID       uint64
	Location Location
}

// Variable is one slot from a method's variable table.
type Variable struct {
	CodeIndex uint64
	Name      string
	Signature string
	Length    uint32
	Slot      uint32
}

// VisibleAt reports whether the variable is in scope at the given
// code index.
func (v Variable) VisibleAt(index uint64) bool {
	return index >= v.CodeIndex && index < v.CodeIndex+uint64(v.Length)
}

// FieldInfo describes one declared field of a reference type.
type FieldInfo struct {
	ID        uint64
	Name      string
	Signature string
	ModBits   uint32
}

// Static reports whether the field is static.
func (f FieldInfo) Static() bool { return f.ModBits&ModStatic != 0 }

// MethodInfo describes one declared method of a reference type.
type MethodInfo struct {
	ID        uint64
	Name      string
	Signature string
	ModBits   uint32
}

// VersionInfo is the target VM's self-description.
type VersionInfo struct {
	Description string
	JDWPMajor   int32
	JDWPMinor   int32
	VMVersion   string
	VMName      string
}

// SlotRequest names one variable slot to read from a stack frame.
type SlotRequest struct {
	Slot uint32
	Tag  byte
}
