package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// Version returns the target VM's self-description.
func (s *Session) Version(ctx context.Context) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	v, err := conn.Version(ctx)
	if err != nil {
		return "", s.finish(err)
	}
	return fmt.Sprintf("VM: %s\nVersion: %s\nDescription: %s", v.VMName, v.VMVersion, v.Description), nil
}

// Threads lists every thread known to the target, in target order. The
// suspended flag derives from the thread's suspend count.
func (s *Session) Threads(ctx context.Context) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	ids, err := conn.AllThreads(ctx)
	if err != nil {
		return "", s.finish(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d threads:\n\n", len(ids))

	for i, id := range ids {
		name, err := conn.ThreadName(ctx, id)
		if err != nil {
			return "", s.finish(err)
		}
		count, err := conn.SuspendCount(ctx, id)
		if err != nil {
			return "", s.finish(err)
		}
		suspended := count > 0

		s.cache.StoreThreadName(id, name)

		fmt.Fprintf(&b, "Thread %d:\n", i)
		fmt.Fprintf(&b, "  ID: %d\n", id)
		fmt.Fprintf(&b, "  Name: %s\n", name)
		fmt.Fprintf(&b, "  Suspended: %t\n", suspended)
		if suspended {
			if frames, err := conn.FrameCount(ctx, id); err == nil {
				fmt.Fprintf(&b, "  Frames: %d\n", frames)
			}
		}
		b.WriteByte('\n')
	}

	return b.String(), nil
}

// threadFrames returns the frame list for a suspended thread,
// refreshing the cache when the thread's frames were invalidated.
func (s *Session) threadFrames(ctx context.Context, conn *jdwp.Conn, thread uint64) ([]jdwp.Frame, error) {
	count, err := conn.SuspendCount(ctx, thread)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		s.cache.InvalidateThread(thread)
		return nil, ErrThreadNotSuspended
	}

	if frames, ok := s.cache.Frames(thread); ok {
		return frames, nil
	}
	frames, err := conn.Frames(ctx, thread, 0, -1)
	if err != nil {
		return nil, err
	}
	s.cache.StoreFrames(thread, frames)
	return frames, nil
}

// Stack returns the ordered call stack of a suspended thread, index 0
// being the innermost frame.
func (s *Session) Stack(ctx context.Context, threadID uint64) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	name, err := conn.ThreadName(ctx, threadID)
	if err != nil {
		return "", s.finish(err)
	}

	frames, err := s.threadFrames(ctx, conn, threadID)
	if err != nil {
		return "", s.finish(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stack trace for thread %d (%s) - %d frames:\n\n", threadID, name, len(frames))

	for i, frame := range frames {
		class, err := s.classInfo(ctx, conn, frame.Location.ClassID)
		if err != nil {
			return "", s.finish(err)
		}
		methodName := "<unknown>"
		for _, m := range class.Methods {
			if m.ID == frame.Location.MethodID && m.DeclaringClass == frame.Location.ClassID {
				methodName = m.Name
				break
			}
		}

		fmt.Fprintf(&b, "Frame %d:\n", i)
		fmt.Fprintf(&b, "  at %s.%s(%s)\n", class.Name, methodName, s.sourceLocation(ctx, conn, frame.Location))
	}

	return b.String(), nil
}

// sourceLocation formats "File.java:123", or "Unknown Source" when the
// class carries no debug information.
func (s *Session) sourceLocation(ctx context.Context, conn *jdwp.Conn, loc jdwp.Location) string {
	file, err := conn.SourceFile(ctx, loc.ClassID)
	if err != nil {
		return "Unknown Source"
	}
	lines, err := conn.LineTable(ctx, loc.ClassID, loc.MethodID)
	if err != nil || len(lines) == 0 {
		return file
	}
	line := lines[0].Line
	for _, entry := range lines {
		if entry.CodeIndex <= loc.Index {
			line = entry.Line
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Locals lists the variables visible at a frame's current program
// point, one "<type> <name> = <value>" line each. Object values enter
// the reference cache with their declared type.
func (s *Session) Locals(ctx context.Context, threadID uint64, frameIndex int) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	frames, err := s.threadFrames(ctx, conn, threadID)
	if err != nil {
		return "", s.finish(err)
	}
	if frameIndex < 0 || frameIndex >= len(frames) {
		return "", fmt.Errorf("%w: frame %d of %d", ErrInvalidFrame, frameIndex, len(frames))
	}
	frame := frames[frameIndex]

	vars, err := conn.VariableTable(ctx, frame.Location.ClassID, frame.Location.MethodID)
	if err != nil {
		var cmdErr *jdwp.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == jdwp.ErrCodeAbsentInformation {
			return "", fmt.Errorf("no variable debug information for this frame")
		}
		return "", s.finish(err)
	}

	visible := make([]jdwp.Variable, 0, len(vars))
	slots := make([]jdwp.SlotRequest, 0, len(vars))
	for _, v := range vars {
		if !v.VisibleAt(frame.Location.Index) {
			continue
		}
		visible = append(visible, v)
		slots = append(slots, jdwp.SlotRequest{Slot: v.Slot, Tag: TagFor(v.Signature)})
	}

	values, err := conn.FrameValues(ctx, threadID, frame.ID, slots)
	if err != nil {
		return "", s.finish(err)
	}
	if len(values) != len(visible) {
		return "", fmt.Errorf("protocol error: got %d values for %d slots", len(values), len(visible))
	}

	r := newRenderer(conn, s.cache)
	var b strings.Builder
	fmt.Fprintf(&b, "Local variables in frame %d:\n\n", frameIndex)
	for i, v := range visible {
		rendered, err := r.value(ctx, values[i], TypeName(v.Signature))
		if err != nil {
			return "", s.finish(err)
		}
		fmt.Fprintf(&b, "%s %s = %s\n", TypeName(v.Signature), v.Name, rendered)
	}

	r.commit()
	return b.String(), nil
}

// fieldLimit caps array element dumps, matching the original bridge.
const fieldArrayLimit = 100

// Fields renders every field of an object including inherited ones.
// Arrays get an indexed element dump instead. Recognized collection
// shapes additionally get a synthesized element/entry view layered
// before the raw field dump.
func (s *Session) Fields(ctx context.Context, objectID uint64) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	typeTag, class, err := s.resolveObject(ctx, conn, objectID)
	if err != nil {
		return "", s.finish(err)
	}

	r := newRenderer(conn, s.cache)

	if typeTag == jdwp.TypeTagArray {
		text, err := s.arrayElements(ctx, r, objectID, class.Name)
		if err != nil {
			return "", s.finish(err)
		}
		r.commit()
		return text, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Object #%d (%s):\n\n", objectID, class.Name)

	if shape, ok := knownShapes[class.Name]; ok {
		view, err := s.collectionView(ctx, r, objectID, class, shape)
		if err != nil {
			return "", s.finish(err)
		}
		b.WriteString(view)
		b.WriteString("\n--- Internal fields ---\n\n")
	}

	dump, err := s.fieldDump(ctx, r, objectID, class)
	if err != nil {
		return "", s.finish(err)
	}
	b.WriteString(dump)

	r.commit()
	return b.String(), nil
}

// fieldDump renders the raw instance fields of an object.
func (s *Session) fieldDump(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo) (string, error) {
	instance := make([]ClassField, 0, len(class.Fields))
	ids := make([]uint64, 0, len(class.Fields))
	for _, f := range class.Fields {
		if f.Static() {
			continue
		}
		instance = append(instance, f)
		ids = append(ids, f.ID)
	}

	values, err := r.conn.ObjectValues(ctx, objectID, ids)
	if err != nil {
		return "", err
	}
	if len(values) != len(instance) {
		return "", fmt.Errorf("protocol error: got %d values for %d fields", len(values), len(instance))
	}

	var b strings.Builder
	for i, f := range instance {
		rendered, err := r.value(ctx, values[i], TypeName(f.Signature))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s %s = %s\n", TypeName(f.Signature), f.Name, rendered)
	}
	return b.String(), nil
}

// arrayElements renders an indexed dump of an array object.
func (s *Session) arrayElements(ctx context.Context, r *renderer, arrayID uint64, typeName string) (string, error) {
	length, err := r.conn.ArrayLength(ctx, arrayID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Array #%d (%s) - %d elements:\n\n", arrayID, typeName, length)

	limit := length
	if limit > fieldArrayLimit {
		limit = fieldArrayLimit
	}
	if limit > 0 {
		elementType := strings.TrimSuffix(typeName, "[]")
		values, err := r.conn.ArrayValues(ctx, arrayID, 0, limit)
		if err != nil {
			return "", err
		}
		for i, v := range values {
			rendered, err := r.value(ctx, v, elementType)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "[%d] = %s\n", i, rendered)
		}
	}
	if length > fieldArrayLimit {
		fmt.Fprintf(&b, "\n... (%d more elements)\n", length-fieldArrayLimit)
	}

	return b.String(), nil
}

// Resume resumes every thread in the target VM and invalidates all
// cached frames.
func (s *Session) Resume(ctx context.Context) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	if err := conn.ResumeVM(ctx); err != nil {
		return "", s.finish(err)
	}
	s.cache.InvalidateAllFrames()
	return "All threads resumed", nil
}
