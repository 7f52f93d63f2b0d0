package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// Evaluate walks a dot-notation expression in a frame's context:
// "request.data.size". The first segment resolves against the frame's
// local variables, then against fields of `this`. Each further segment
// resolves as a field of the current object, falling back to a no-arg
// getX()/isX() getter invocation. Getter invocations resume the thread
// transiently, so cached frames are invalidated when any ran.
func (s *Session) Evaluate(ctx context.Context, threadID uint64, frameIndex int, expr string) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}
	parts := strings.Split(expr, ".")

	current, declared, err := s.rootValue(ctx, conn, threadID, frameIndex, parts[0])
	if err != nil {
		return "", s.finish(err)
	}

	// The thread ran if any getter fired, even when a later segment
	// fails, so the frame cache must go regardless of the outcome.
	invoked := false
	defer func() {
		if invoked {
			s.cache.InvalidateThread(threadID)
		}
	}()

	for _, part := range parts[1:] {
		if current.IsNull() {
			return "", fmt.Errorf("null reference at %q in %q", part, expr)
		}
		if !current.IsObject() {
			return "", fmt.Errorf("cannot navigate into primitive value at %q in %q", part, expr)
		}

		next, nextDeclared, usedInvoke, err := s.step(ctx, conn, threadID, current.Object, part)
		if err != nil {
			return "", s.finish(err)
		}
		invoked = invoked || usedInvoke
		current, declared = next, nextDeclared
	}

	r := newRenderer(conn, s.cache)
	rendered, err := r.value(ctx, current, declared)
	if err != nil {
		return "", s.finish(err)
	}
	r.commit()
	return fmt.Sprintf("%s = %s", expr, rendered), nil
}

// rootValue resolves the first expression segment: a visible local
// variable, else a field of the frame's receiver.
func (s *Session) rootValue(ctx context.Context, conn *jdwp.Conn, threadID uint64, frameIndex int, name string) (jdwp.Value, string, error) {
	frames, err := s.threadFrames(ctx, conn, threadID)
	if err != nil {
		return jdwp.Value{}, "", err
	}
	if frameIndex < 0 || frameIndex >= len(frames) {
		return jdwp.Value{}, "", fmt.Errorf("%w: frame %d of %d", ErrInvalidFrame, frameIndex, len(frames))
	}
	frame := frames[frameIndex]

	vars, err := conn.VariableTable(ctx, frame.Location.ClassID, frame.Location.MethodID)
	if err == nil {
		for _, v := range vars {
			if v.Name != name || !v.VisibleAt(frame.Location.Index) {
				continue
			}
			values, err := conn.FrameValues(ctx, threadID, frame.ID, []jdwp.SlotRequest{{Slot: v.Slot, Tag: TagFor(v.Signature)}})
			if err != nil {
				return jdwp.Value{}, "", err
			}
			if len(values) != 1 {
				return jdwp.Value{}, "", fmt.Errorf("protocol error: expected one slot value")
			}
			return values[0], TypeName(v.Signature), nil
		}
	}

	// No such local (or no debug info): try a field of `this`.
	this, err := conn.ThisObject(ctx, threadID, frame.ID)
	if err != nil || this == 0 {
		return jdwp.Value{}, "", fmt.Errorf("no local variable or field %q in frame %d", name, frameIndex)
	}
	_, class, err := s.resolveObject(ctx, conn, this)
	if err != nil {
		return jdwp.Value{}, "", err
	}
	f, ok := class.FieldByName(name)
	if !ok || f.Static() {
		return jdwp.Value{}, "", fmt.Errorf("no local variable or field %q in frame %d", name, frameIndex)
	}
	v, err := s.objectField(ctx, conn, this, class, name)
	if err != nil {
		return jdwp.Value{}, "", err
	}
	return v, TypeName(f.Signature), nil
}

// step resolves one path segment against an object: field first, then
// a no-arg getter.
func (s *Session) step(ctx context.Context, conn *jdwp.Conn, threadID, objectID uint64, part string) (jdwp.Value, string, bool, error) {
	_, class, err := s.resolveObject(ctx, conn, objectID)
	if err != nil {
		return jdwp.Value{}, "", false, err
	}

	if f, ok := class.FieldByName(part); ok && !f.Static() {
		v, err := s.objectField(ctx, conn, objectID, class, part)
		if err != nil {
			return jdwp.Value{}, "", false, err
		}
		return v, TypeName(f.Signature), false, nil
	}

	for _, getter := range []string{"get" + capitalize(part), "is" + capitalize(part)} {
		m, err := resolveMethod(class, getter, 0)
		if err != nil {
			continue
		}
		res, err := conn.InvokeObjectMethod(ctx, objectID, threadID, m.DeclaringClass, m.ID, nil, jdwp.InvokeSingleThreaded)
		if err != nil {
			return jdwp.Value{}, "", true, err
		}
		if res.Exception != 0 {
			return jdwp.Value{}, "", true, &TargetException{Rendered: fmt.Sprintf("Object#%d", res.Exception)}
		}
		return res.Return, "", true, nil
	}

	return jdwp.Value{}, "", false, fmt.Errorf("no field or getter for %q on %s", part, class.Name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
