package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

func TestMarshalArgLiterals(t *testing.T) {
	s := NewSession()
	s.cache.Store(ObjectInfo{ID: 26886, TypeName: "com.axelor.rpc.Request"})
	ctx := context.Background()

	tests := []struct {
		name string
		arg  string
		tag  byte
		want jdwp.Value
	}{
		{"null", "null", jdwp.TagObject, jdwp.Value{Tag: jdwp.TagObject}},
		{"true", "true", jdwp.TagBoolean, jdwp.Value{Tag: jdwp.TagBoolean, Int: 1}},
		{"false", "false", jdwp.TagBoolean, jdwp.Value{Tag: jdwp.TagBoolean}},
		{"int", "42", jdwp.TagInt, jdwp.Value{Tag: jdwp.TagInt, Int: 42}},
		{"negative int", "-7", jdwp.TagInt, jdwp.Value{Tag: jdwp.TagInt, Int: -7}},
		{"long param", "42", jdwp.TagLong, jdwp.Value{Tag: jdwp.TagLong, Int: 42}},
		{"short param", "42", jdwp.TagShort, jdwp.Value{Tag: jdwp.TagShort, Int: 42}},
		{"long suffix", "42L", jdwp.TagObject, jdwp.Value{Tag: jdwp.TagLong, Int: 42}},
		{"int to double param", "42", jdwp.TagDouble, jdwp.Value{Tag: jdwp.TagDouble, Float: 42}},
		{"double", "3.25", jdwp.TagDouble, jdwp.Value{Tag: jdwp.TagDouble, Float: 3.25}},
		{"float param", "1.5", jdwp.TagFloat, jdwp.Value{Tag: jdwp.TagFloat, Float: 1.5}},
		{"decimal defaults to double", "2.5", jdwp.TagObject, jdwp.Value{Tag: jdwp.TagDouble, Float: 2.5}},
		{"object reference", "Object#26886", jdwp.TagObject, jdwp.Value{Tag: jdwp.TagObject, Object: 26886}},
		{"cached bare id for object param", "26886", jdwp.TagObject, jdwp.Value{Tag: jdwp.TagObject, Object: 26886}},
		{"uncached bare number stays numeric", "12345", jdwp.TagInt, jdwp.Value{Tag: jdwp.TagInt, Int: 12345}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.marshalArg(ctx, nil, tt.arg, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalArgRejectsGarbage(t *testing.T) {
	s := NewSession()
	ctx := context.Background()

	for _, arg := range []string{"blah", "Object#xyz", `"unterminated`} {
		_, err := s.marshalArg(ctx, nil, arg, jdwp.TagObject)
		assert.Error(t, err, "arg %q", arg)
	}
}

func methodOn(class uint64, id uint64, name, sig string, mod uint32) ClassMethod {
	return ClassMethod{
		MethodInfo:     jdwp.MethodInfo{ID: id, Name: name, Signature: sig, ModBits: mod},
		DeclaringClass: class,
	}
}

func TestResolveMethod(t *testing.T) {
	// Methods flatten base-to-derived, like the field order.
	class := &ClassInfo{
		ID:   102,
		Name: "com.axelor.rpc.Request",
		Methods: []ClassMethod{
			methodOn(101, 410, "toString", "()Ljava/lang/String;", 0),
			methodOn(101, 411, "valueOf", "(I)Ljava/lang/String;", jdwp.ModStatic),
			methodOn(102, 420, "toString", "()Ljava/lang/String;", 0),
			methodOn(102, 421, "get", "(I)Ljava/lang/Object;", 0),
			methodOn(102, 422, "get", "(Ljava/lang/Object;)Ljava/lang/Object;", 0),
			methodOn(102, 423, "getModel", "()Ljava/lang/String;", 0),
		},
	}

	t.Run("override shadows base declaration", func(t *testing.T) {
		m, err := resolveMethod(class, "toString", 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(420), m.ID)
		assert.Equal(t, uint64(102), m.DeclaringClass)
	})

	t.Run("unique match", func(t *testing.T) {
		m, err := resolveMethod(class, "getModel", 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(423), m.ID)
	})

	t.Run("distinct overloads are ambiguous", func(t *testing.T) {
		_, err := resolveMethod(class, "get", 1)
		assert.ErrorIs(t, err, ErrAmbiguousMethod)
	})

	t.Run("static methods are skipped", func(t *testing.T) {
		_, err := resolveMethod(class, "valueOf", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := resolveMethod(class, "getModel", 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
