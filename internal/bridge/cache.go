package bridge

import (
	"sync"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// ObjectInfo is the cached metadata for one remote object id. The
// target VM never reuses an id for a distinct live object within a
// session, so id equality is object identity.
type ObjectInfo struct {
	ID       uint64
	TypeName string
	IsArray  bool
}

// ClassInfo is the cached layout of one reference type. Fields include
// inherited ones, superclass-first flattened into declaration order.
type ClassInfo struct {
	ID      uint64
	Name    string
	Fields  []ClassField
	Methods []ClassMethod
}

// ClassField is one field with the type that declared it.
type ClassField struct {
	jdwp.FieldInfo
	DeclaringType string
}

// ClassMethod is one method with the class id needed for invocation.
type ClassMethod struct {
	jdwp.MethodInfo
	DeclaringClass uint64
}

// FieldByName finds a field by name, preferring the most derived
// declaration.
func (ci *ClassInfo) FieldByName(name string) (ClassField, bool) {
	for i := len(ci.Fields) - 1; i >= 0; i-- {
		if ci.Fields[i].Name == name {
			return ci.Fields[i], true
		}
	}
	return ClassField{}, false
}

// RefCache maps opaque remote identifiers to cached metadata. It is
// unbounded for the session's lifetime; the only invalidation rules are
// per-thread frame invalidation on resume and full reset on teardown.
// Safe for concurrent use by in-flight operations.
type RefCache struct {
	mu      sync.RWMutex
	objects map[uint64]ObjectInfo
	threads map[uint64]string
	frames  map[uint64][]jdwp.Frame
	classes map[uint64]*ClassInfo
}

// NewRefCache returns an empty cache.
func NewRefCache() *RefCache {
	return &RefCache{
		objects: make(map[uint64]ObjectInfo),
		threads: make(map[uint64]string),
		frames:  make(map[uint64][]jdwp.Frame),
		classes: make(map[uint64]*ClassInfo),
	}
}

// Lookup returns cached object metadata.
func (rc *RefCache) Lookup(id uint64) (ObjectInfo, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	info, ok := rc.objects[id]
	return info, ok
}

// Store inserts or overwrites object metadata (last write wins).
func (rc *RefCache) Store(info ObjectInfo) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.objects[info.ID] = info
}

// StoreThreadName caches a thread's name.
func (rc *RefCache) StoreThreadName(id uint64, name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.threads[id] = name
}

// ThreadName returns a cached thread name.
func (rc *RefCache) ThreadName(id uint64) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	name, ok := rc.threads[id]
	return name, ok
}

// StoreFrames caches the frame list captured for a suspended thread.
func (rc *RefCache) StoreFrames(thread uint64, frames []jdwp.Frame) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.frames[thread] = frames
}

// Frames returns the cached frame list for a thread, if still valid.
func (rc *RefCache) Frames(thread uint64) ([]jdwp.Frame, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	frames, ok := rc.frames[thread]
	return frames, ok
}

// InvalidateThread drops every cached frame for a thread. Must be
// called whenever the thread is resumed, including the transient
// resume inside a method invocation. Object entries survive: object
// ids outlive frame validity.
func (rc *RefCache) InvalidateThread(thread uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.frames, thread)
}

// InvalidateAllFrames drops cached frames for every thread (VM-wide
// resume).
func (rc *RefCache) InvalidateAllFrames() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.frames = make(map[uint64][]jdwp.Frame)
}

// StoreClass caches a reference type's layout.
func (rc *RefCache) StoreClass(info *ClassInfo) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.classes[info.ID] = info
}

// Class returns a cached reference type layout.
func (rc *RefCache) Class(id uint64) (*ClassInfo, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	info, ok := rc.classes[id]
	return info, ok
}

// Reset drops everything. Called on session teardown.
func (rc *RefCache) Reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.objects = make(map[uint64]ObjectInfo)
	rc.threads = make(map[uint64]string)
	rc.frames = make(map[uint64][]jdwp.Frame)
	rc.classes = make(map[uint64]*ClassInfo)
}
