package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// Invoke calls a method on an object inside a suspended thread. The
// protocol transiently resumes only that thread for the duration of the
// call and re-suspends it, so every cached frame for the thread is
// invalidated afterwards. A throw inside the target surfaces as
// *TargetException; it is never swallowed.
func (s *Session) Invoke(ctx context.Context, threadID, objectID uint64, methodName string, args []string) (string, error) {
	conn, ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	// The suspend check must precede any invoke command on the wire.
	count, err := conn.SuspendCount(ctx, threadID)
	if err != nil {
		return "", s.finish(err)
	}
	if count == 0 {
		return "", ErrThreadNotSuspended
	}

	_, class, err := s.resolveObject(ctx, conn, objectID)
	if err != nil {
		return "", s.finish(err)
	}

	method, err := resolveMethod(class, methodName, len(args))
	if err != nil {
		return "", err
	}

	values, err := s.marshalArgs(ctx, conn, args, ParamTags(method.Signature))
	if err != nil {
		return "", err
	}

	res, err := conn.InvokeObjectMethod(ctx, objectID, threadID, method.DeclaringClass, method.ID, values, jdwp.InvokeSingleThreaded)

	// The thread ran regardless of the outcome: frame indices may have
	// shifted even though it ends suspended again.
	s.cache.InvalidateThread(threadID)

	if err != nil {
		return "", s.finish(err)
	}

	r := newRenderer(conn, s.cache)

	if res.Exception != 0 {
		_, exClass, resolveErr := s.resolveObject(ctx, conn, res.Exception)
		rendered := fmt.Sprintf("Object#%d", res.Exception)
		if resolveErr == nil {
			rendered = fmt.Sprintf("Object#%d (%s)", res.Exception, exClass.Name)
		}
		r.stage = append(r.stage, ObjectInfo{ID: res.Exception})
		r.commit()
		return "", &TargetException{Rendered: rendered}
	}

	rendered, err := r.value(ctx, res.Return, "")
	if err != nil {
		return "", s.finish(err)
	}
	r.commit()
	return fmt.Sprintf("Result: %s", rendered), nil
}

// resolveMethod finds the single method matching name and arity on the
// receiver's runtime type. Overrides shadow superclass declarations;
// genuinely distinct overloads are ambiguous rather than guessed at.
func resolveMethod(class *ClassInfo, name string, arity int) (ClassMethod, error) {
	var candidates []ClassMethod
	seen := make(map[string]bool)
	// Walk derived-first so an override wins over what it shadows.
	for i := len(class.Methods) - 1; i >= 0; i-- {
		m := class.Methods[i]
		if m.Name != name || m.Static() {
			continue
		}
		if ParamCount(m.Signature) != arity {
			continue
		}
		if seen[m.Signature] {
			continue
		}
		seen[m.Signature] = true
		candidates = append(candidates, m)
	}

	switch len(candidates) {
	case 0:
		return ClassMethod{}, fmt.Errorf("method %q with %d argument(s) not found on %s", name, arity, class.Name)
	case 1:
		return candidates[0], nil
	default:
		return ClassMethod{}, fmt.Errorf("%w: %d overloads of %s.%s take %d argument(s)",
			ErrAmbiguousMethod, len(candidates), class.Name, name, arity)
	}
}

// Static reports whether the method is static.
func (m ClassMethod) Static() bool { return m.ModBits&jdwp.ModStatic != 0 }

// marshalArgs converts textual argument literals into tagged values,
// coerced to the resolved method's parameter tags:
//
//	true/false      -> boolean
//	integer literal -> the parameter's integral width
//	decimal literal -> float or double
//	"quoted"        -> a string created in the target VM
//	null            -> null reference
//	Object#<id>     -> cached object reference
func (s *Session) marshalArgs(ctx context.Context, conn *jdwp.Conn, args []string, paramTags []byte) ([]jdwp.Value, error) {
	values := make([]jdwp.Value, 0, len(args))
	for i, arg := range args {
		tag := byte(jdwp.TagObject)
		if i < len(paramTags) {
			tag = paramTags[i]
		}
		v, err := s.marshalArg(ctx, conn, arg, tag)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (s *Session) marshalArg(ctx context.Context, conn *jdwp.Conn, arg string, tag byte) (jdwp.Value, error) {
	arg = strings.TrimSpace(arg)

	switch {
	case arg == "null":
		return jdwp.Value{Tag: jdwp.TagObject}, nil

	case arg == "true" || arg == "false":
		v := jdwp.Value{Tag: jdwp.TagBoolean}
		if arg == "true" {
			v.Int = 1
		}
		return v, nil

	case strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"") && len(arg) >= 2:
		unquoted, err := strconv.Unquote(arg)
		if err != nil {
			return jdwp.Value{}, fmt.Errorf("bad string literal %s", arg)
		}
		id, err := conn.CreateString(ctx, unquoted)
		if err != nil {
			return jdwp.Value{}, err
		}
		return jdwp.Value{Tag: jdwp.TagString, Object: id}, nil

	case strings.HasPrefix(arg, "Object#"):
		id, err := strconv.ParseUint(strings.TrimPrefix(arg, "Object#"), 10, 64)
		if err != nil {
			return jdwp.Value{}, fmt.Errorf("bad object reference %s", arg)
		}
		return jdwp.Value{Tag: jdwp.TagObject, Object: id}, nil
	}

	// For an object parameter a bare number is a cached object id, not
	// an integer literal.
	if (jdwp.Value{Tag: tag}).IsObject() {
		if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
			if _, ok := s.cache.Lookup(id); ok {
				return jdwp.Value{Tag: jdwp.TagObject, Object: id}, nil
			}
		}
	}

	if n, err := strconv.ParseInt(strings.TrimSuffix(arg, "L"), 10, 64); err == nil {
		if tag == jdwp.TagFloat || tag == jdwp.TagDouble {
			return jdwp.Value{Tag: tag, Float: float64(n)}, nil
		}
		intTag := tag
		switch intTag {
		case jdwp.TagByte, jdwp.TagShort, jdwp.TagInt, jdwp.TagLong, jdwp.TagChar:
		default:
			intTag = jdwp.TagInt
			if strings.HasSuffix(arg, "L") {
				intTag = jdwp.TagLong
			}
		}
		return jdwp.Value{Tag: intTag, Int: n}, nil
	}

	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		floatTag := tag
		if floatTag != jdwp.TagFloat {
			floatTag = jdwp.TagDouble
		}
		return jdwp.Value{Tag: floatTag, Float: f}, nil
	}

	// A bare number-less token may still be a cached object id.
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		if _, ok := s.cache.Lookup(id); ok {
			return jdwp.Value{Tag: jdwp.TagObject, Object: id}, nil
		}
	}

	return jdwp.Value{}, fmt.Errorf("cannot interpret argument %q", arg)
}
