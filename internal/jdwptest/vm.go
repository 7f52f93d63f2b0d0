// Package jdwptest provides an in-process fake JDWP target for tests:
// a TCP server speaking real wire frames over a small scripted VM model
// of threads, classes, objects, arrays and strings.
package jdwptest

import (
	"sync"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// InvokeCall captures one ObjectReference.InvokeMethod command.
type InvokeCall struct {
	Object uint64
	Thread uint64
	Class  uint64
	Method uint64
	Args   []jdwp.Value
}

// VM is the scripted model served over the wire. Populate it before
// starting the server; the handlers read it under the lock.
type VM struct {
	mu sync.Mutex

	Description string
	VMVersion   string
	VMName      string

	threadOrder []uint64
	threads     map[uint64]*Thread
	classes     map[uint64]*Class
	objects     map[uint64]*Object
	arrays      map[uint64]*Array
	strings     map[uint64]string

	nextID uint64

	// InvokeHook, when set, scripts invocation outcomes. It returns the
	// result value, the thrown exception object id (0 for none) and a
	// JDWP error code (0 for success). The default returns void.
	InvokeHook func(call InvokeCall) (jdwp.Value, uint64, uint16)

	invokes []InvokeCall
}

// NewVM returns an empty model with plausible version strings.
func NewVM() *VM {
	return &VM{
		Description: "Java Debug Wire Protocol (Reference Implementation)",
		VMVersion:   "17.0.2",
		VMName:      "OpenJDK 64-Bit Server VM",
		threads:     make(map[uint64]*Thread),
		classes:     make(map[uint64]*Class),
		objects:     make(map[uint64]*Object),
		arrays:      make(map[uint64]*Array),
		strings:     make(map[uint64]string),
		nextID:      1 << 20,
	}
}

// Invokes returns every invocation the server received, in order.
func (vm *VM) Invokes() []InvokeCall {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]InvokeCall(nil), vm.invokes...)
}

// Thread is one modeled thread. Frames are ordered innermost first.
type Thread struct {
	ID           uint64
	Name         string
	SuspendCount int32
	Frames       []*Frame
}

// Frame is one modeled stack frame.
type Frame struct {
	ID        uint64
	Class     uint64
	Method    uint64
	CodeIndex uint64
	This      uint64
	Slots     map[uint32]jdwp.Value
}

// SetSlot stores a variable slot value.
func (f *Frame) SetSlot(slot uint32, v jdwp.Value) *Frame {
	if f.Slots == nil {
		f.Slots = make(map[uint32]jdwp.Value)
	}
	f.Slots[slot] = v
	return f
}

// AddThread registers a thread.
func (vm *VM) AddThread(id uint64, name string, suspendCount int32) *Thread {
	t := &Thread{ID: id, Name: name, SuspendCount: suspendCount}
	vm.threads[id] = t
	vm.threadOrder = append(vm.threadOrder, id)
	return t
}

// PushFrame appends a frame below the thread's current deepest one.
func (t *Thread) PushFrame(id, class, method, codeIndex uint64) *Frame {
	f := &Frame{ID: id, Class: class, Method: method, CodeIndex: codeIndex}
	t.Frames = append(t.Frames, f)
	return f
}

// Class is one modeled reference type.
type Class struct {
	ID         uint64
	Signature  string
	Super      uint64
	SourceFile string
	TypeTag    byte

	Fields  []jdwp.FieldInfo
	Methods []jdwp.MethodInfo

	vars  map[uint64][]jdwp.Variable
	lines map[uint64][]jdwp.LineEntry
}

// AddClass registers a reference type by JNI signature.
func (vm *VM) AddClass(id uint64, signature string) *Class {
	c := &Class{
		ID:        id,
		Signature: signature,
		TypeTag:   jdwp.TypeTagClass,
		vars:      make(map[uint64][]jdwp.Variable),
		lines:     make(map[uint64][]jdwp.LineEntry),
	}
	if len(signature) > 0 && signature[0] == '[' {
		c.TypeTag = jdwp.TypeTagArray
	}
	vm.classes[id] = c
	return c
}

// AddField declares a field directly on the class.
func (c *Class) AddField(id uint64, name, signature string, modBits uint32) *Class {
	c.Fields = append(c.Fields, jdwp.FieldInfo{ID: id, Name: name, Signature: signature, ModBits: modBits})
	return c
}

// AddMethod declares a method directly on the class.
func (c *Class) AddMethod(id uint64, name, signature string, modBits uint32) *Class {
	c.Methods = append(c.Methods, jdwp.MethodInfo{ID: id, Name: name, Signature: signature, ModBits: modBits})
	return c
}

// AddVariable appends a variable table entry for a method.
func (c *Class) AddVariable(method uint64, v jdwp.Variable) *Class {
	c.vars[method] = append(c.vars[method], v)
	return c
}

// AddLine appends a line table entry for a method.
func (c *Class) AddLine(method, codeIndex uint64, line int32) *Class {
	c.lines[method] = append(c.lines[method], jdwp.LineEntry{CodeIndex: codeIndex, Line: line})
	return c
}

// Object is one modeled heap object.
type Object struct {
	ID     uint64
	Class  uint64
	Fields map[uint64]jdwp.Value
}

// AddObject registers an object of the given class.
func (vm *VM) AddObject(id, class uint64) *Object {
	o := &Object{ID: id, Class: class, Fields: make(map[uint64]jdwp.Value)}
	vm.objects[id] = o
	return o
}

// Set stores a field value by field id.
func (o *Object) Set(field uint64, v jdwp.Value) *Object {
	o.Fields[field] = v
	return o
}

// Array is one modeled array object. Tag is the region tag reported by
// ArrayReference.GetValues.
type Array struct {
	ID     uint64
	Class  uint64
	Tag    byte
	Values []jdwp.Value
}

// AddArray registers an array object.
func (vm *VM) AddArray(id, class uint64, tag byte, values []jdwp.Value) *Array {
	a := &Array{ID: id, Class: class, Tag: tag, Values: values}
	vm.arrays[id] = a
	return a
}

// AddString registers a string object with fixed contents.
func (vm *VM) AddString(id uint64, s string) {
	vm.strings[id] = s
}

// stringClass finds the modeled java.lang.String type, if any.
func (vm *VM) stringClass() *Class {
	for _, c := range vm.classes {
		if c.Signature == "Ljava/lang/String;" {
			return c
		}
	}
	return nil
}
