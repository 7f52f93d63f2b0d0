package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

func TestRefCacheObjectIdentity(t *testing.T) {
	rc := NewRefCache()

	_, ok := rc.Lookup(26886)
	assert.False(t, ok)

	rc.Store(ObjectInfo{ID: 26886, TypeName: "com.axelor.rpc.Request"})
	info, ok := rc.Lookup(26886)
	require.True(t, ok)
	assert.Equal(t, "com.axelor.rpc.Request", info.TypeName)

	// Re-storing the same id overwrites in place; there is never a
	// second entry for the same remote object.
	rc.Store(ObjectInfo{ID: 26886, TypeName: "com.axelor.rpc.Request", IsArray: false})
	info, ok = rc.Lookup(26886)
	require.True(t, ok)
	assert.Equal(t, uint64(26886), info.ID)
}

func TestRefCacheFrameInvalidation(t *testing.T) {
	rc := NewRefCache()
	frames := []jdwp.Frame{{ID: 500}, {ID: 501}}

	rc.StoreFrames(15, frames)
	rc.StoreFrames(16, frames)
	rc.Store(ObjectInfo{ID: 26886, TypeName: "com.axelor.rpc.Request"})

	got, ok := rc.Frames(15)
	require.True(t, ok)
	assert.Len(t, got, 2)

	// Invalidation is per-thread and never touches object entries.
	rc.InvalidateThread(15)
	_, ok = rc.Frames(15)
	assert.False(t, ok)
	_, ok = rc.Frames(16)
	assert.True(t, ok)
	_, ok = rc.Lookup(26886)
	assert.True(t, ok)

	rc.InvalidateAllFrames()
	_, ok = rc.Frames(16)
	assert.False(t, ok)
	_, ok = rc.Lookup(26886)
	assert.True(t, ok)
}

func TestRefCacheReset(t *testing.T) {
	rc := NewRefCache()
	rc.Store(ObjectInfo{ID: 1})
	rc.StoreThreadName(15, "main")
	rc.StoreFrames(15, []jdwp.Frame{{ID: 500}})
	rc.StoreClass(&ClassInfo{ID: 100, Name: "java.lang.Object"})

	rc.Reset()

	_, ok := rc.Lookup(1)
	assert.False(t, ok)
	_, ok = rc.ThreadName(15)
	assert.False(t, ok)
	_, ok = rc.Frames(15)
	assert.False(t, ok)
	_, ok = rc.Class(100)
	assert.False(t, ok)
}

func TestClassInfoFieldByName(t *testing.T) {
	ci := &ClassInfo{
		Name: "com.example.Derived",
		Fields: []ClassField{
			{FieldInfo: jdwp.FieldInfo{ID: 1, Name: "value", Signature: "I"}, DeclaringType: "com.example.Base"},
			{FieldInfo: jdwp.FieldInfo{ID: 2, Name: "name", Signature: "Ljava/lang/String;"}, DeclaringType: "com.example.Base"},
			{FieldInfo: jdwp.FieldInfo{ID: 3, Name: "value", Signature: "J"}, DeclaringType: "com.example.Derived"},
		},
	}

	// A shadowing declaration in the derived class wins.
	f, ok := ci.FieldByName("value")
	require.True(t, ok)
	assert.Equal(t, uint64(3), f.ID)
	assert.Equal(t, "com.example.Derived", f.DeclaringType)

	f, ok = ci.FieldByName("name")
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.ID)

	_, ok = ci.FieldByName("missing")
	assert.False(t, ok)
}

func TestRendererCommitKeepsTypedEntries(t *testing.T) {
	rc := NewRefCache()
	rc.Store(ObjectInfo{ID: 26886, TypeName: "com.axelor.rpc.Request"})

	r := &renderer{cache: rc}
	r.stage = append(r.stage, ObjectInfo{ID: 26886}, ObjectInfo{ID: 26900, TypeName: "java.util.HashMap"})
	r.commit()

	info, ok := rc.Lookup(26886)
	require.True(t, ok)
	assert.Equal(t, "com.axelor.rpc.Request", info.TypeName, "untyped sighting must not clobber a typed entry")

	info, ok = rc.Lookup(26900)
	require.True(t, ok)
	assert.Equal(t, "java.util.HashMap", info.TypeName)
	assert.Empty(t, r.stage)
}
