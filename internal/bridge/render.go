package bridge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// maxRenderedString caps fetched string contents so one huge string
// cannot dominate an operation's output.
const maxRenderedString = 512

// renderer turns JDWP values into the bridge's textual form. Object
// references discovered while rendering are staged and committed to the
// cache only when the whole operation succeeds, so a failed operation
// never leaves a half-populated cache.
type renderer struct {
	conn  *jdwp.Conn
	cache *RefCache
	stage []ObjectInfo
}

func newRenderer(conn *jdwp.Conn, cache *RefCache) *renderer {
	return &renderer{conn: conn, cache: cache}
}

// commit publishes every staged reference. Call only on success.
func (r *renderer) commit() {
	for _, info := range r.stage {
		if info.TypeName == "" {
			// Never clobber a typed entry with an untyped sighting.
			if existing, ok := r.cache.Lookup(info.ID); ok {
				info.TypeName = existing.TypeName
			}
		}
		r.cache.Store(info)
	}
	r.stage = nil
}

// value renders one value. declaredType, when known from a variable or
// field signature, is recorded for any staged object reference.
func (r *renderer) value(ctx context.Context, v jdwp.Value, declaredType string) (string, error) {
	if v.IsNull() {
		return "null", nil
	}

	switch v.Tag {
	case jdwp.TagVoid:
		return "void", nil
	case jdwp.TagBoolean:
		if v.Int != 0 {
			return "true", nil
		}
		return "false", nil
	case jdwp.TagChar:
		return strconv.QuoteRune(rune(v.Int)), nil
	case jdwp.TagByte, jdwp.TagShort, jdwp.TagInt, jdwp.TagLong:
		return strconv.FormatInt(v.Int, 10), nil
	case jdwp.TagFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 32), nil
	case jdwp.TagDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case jdwp.TagString:
		s, err := r.conn.StringValue(ctx, v.Object)
		if err != nil {
			return "", err
		}
		if len(s) > maxRenderedString {
			s = s[:maxRenderedString] + "..."
		}
		r.stage = append(r.stage, ObjectInfo{ID: v.Object, TypeName: "java.lang.String"})
		return strconv.Quote(s), nil
	case jdwp.TagArray:
		r.stage = append(r.stage, ObjectInfo{ID: v.Object, TypeName: declaredType, IsArray: true})
		return fmt.Sprintf("Array#%d", v.Object), nil
	case jdwp.TagObject, jdwp.TagThread, jdwp.TagThreadGroup, jdwp.TagClassLoader, jdwp.TagClassObject:
		r.stage = append(r.stage, ObjectInfo{ID: v.Object, TypeName: declaredType})
		return fmt.Sprintf("Object#%d", v.Object), nil
	}
	return "", fmt.Errorf("protocol error: unknown value tag %q", v.Tag)
}
