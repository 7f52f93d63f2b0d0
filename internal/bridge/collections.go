package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// Smart collection views. Recognition is an exact match of the runtime
// class name against a closed table; an unrecognized subclass of a
// known shape falls back to the plain field dump. Each recipe is a
// read-only walk of the container's internal backing storage and
// never mutates the target.

type shapeKind int

const (
	shapeArrayList shapeKind = iota
	shapeLinkedList
	shapeHashMap
	shapeLinkedHashMap
	shapeSet
)

// knownShapes is the closed recognition table. TreeMap/TreeSet are
// deliberately absent: their red-black tree layout has no linear entry
// chain to walk, so they get the raw field dump.
var knownShapes = map[string]shapeKind{
	"java.util.ArrayList":     shapeArrayList,
	"java.util.LinkedList":    shapeLinkedList,
	"java.util.HashMap":       shapeHashMap,
	"java.util.LinkedHashMap": shapeLinkedHashMap,
	"java.util.HashSet":       shapeSet,
	"java.util.LinkedHashSet": shapeSet,
}

// collectionLimit caps rendered elements/entries per view.
const collectionLimit = 50

// collectionView synthesizes the element/entry lines for a recognized
// container. The returned text is layered before the raw field dump.
func (s *Session) collectionView(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo, shape shapeKind) (string, error) {
	if shape == shapeSet {
		// Sets delegate to their backing map, including its size.
		return s.setView(ctx, r, objectID, class)
	}

	size, err := s.intField(ctx, r.conn, objectID, class, "size")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Size: %d\n\n", size)

	switch shape {
	case shapeArrayList:
		view, err := s.arrayListElements(ctx, r, objectID, class, size)
		if err != nil {
			return "", err
		}
		b.WriteString(view)
	case shapeLinkedList:
		view, err := s.linkedListElements(ctx, r, objectID, class, size)
		if err != nil {
			return "", err
		}
		b.WriteString(view)
	case shapeHashMap:
		view, err := s.hashMapEntries(ctx, r, objectID, class, size)
		if err != nil {
			return "", err
		}
		b.WriteString(view)
	case shapeLinkedHashMap:
		view, err := s.linkedMapEntries(ctx, r, objectID, class, size)
		if err != nil {
			return "", err
		}
		b.WriteString(view)
	}

	return b.String(), nil
}

// objectField reads one named field of an object.
func (s *Session) objectField(ctx context.Context, conn *jdwp.Conn, objectID uint64, class *ClassInfo, name string) (jdwp.Value, error) {
	f, ok := class.FieldByName(name)
	if !ok {
		return jdwp.Value{}, fmt.Errorf("type %s has no %q field", class.Name, name)
	}
	values, err := conn.ObjectValues(ctx, objectID, []uint64{f.ID})
	if err != nil {
		return jdwp.Value{}, err
	}
	if len(values) != 1 {
		return jdwp.Value{}, fmt.Errorf("protocol error: expected one value for field %q", name)
	}
	return values[0], nil
}

func (s *Session) intField(ctx context.Context, conn *jdwp.Conn, objectID uint64, class *ClassInfo, name string) (int32, error) {
	v, err := s.objectField(ctx, conn, objectID, class, name)
	if err != nil {
		return 0, err
	}
	return int32(v.Int), nil
}

// refField reads a named reference field and resolves its runtime class.
func (s *Session) refField(ctx context.Context, conn *jdwp.Conn, objectID uint64, class *ClassInfo, name string) (uint64, *ClassInfo, error) {
	v, err := s.objectField(ctx, conn, objectID, class, name)
	if err != nil {
		return 0, nil, err
	}
	if v.IsNull() {
		return 0, nil, nil
	}
	_, info, err := s.resolveObject(ctx, conn, v.Object)
	if err != nil {
		return 0, nil, err
	}
	return v.Object, info, nil
}

// arrayListElements walks the elementData backing array in storage
// order; element count follows the size field, not the array capacity.
func (s *Session) arrayListElements(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo, size int32) (string, error) {
	var b strings.Builder
	b.WriteString("Elements:\n")

	backing, err := s.objectField(ctx, r.conn, objectID, class, "elementData")
	if err != nil {
		return "", err
	}
	if backing.IsNull() || size == 0 {
		return b.String(), nil
	}

	limit := size
	if limit > collectionLimit {
		limit = collectionLimit
	}
	values, err := r.conn.ArrayValues(ctx, backing.Object, 0, limit)
	if err != nil {
		return "", err
	}
	for i, v := range values {
		rendered, err := r.value(ctx, v, "")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  [%d] = %s\n", i, rendered)
	}
	if size > collectionLimit {
		fmt.Fprintf(&b, "  ... (%d more elements)\n", size-collectionLimit)
	}

	return b.String(), nil
}

// linkedListElements walks the first/next node chain.
func (s *Session) linkedListElements(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo, size int32) (string, error) {
	var b strings.Builder
	b.WriteString("Elements:\n")

	node, nodeClass, err := s.refField(ctx, r.conn, objectID, class, "first")
	if err != nil {
		return "", err
	}

	for i := int32(0); node != 0 && i < collectionLimit; i++ {
		item, err := s.objectField(ctx, r.conn, node, nodeClass, "item")
		if err != nil {
			return "", err
		}
		rendered, err := r.value(ctx, item, "")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  [%d] = %s\n", i, rendered)

		node, nodeClass, err = s.refField(ctx, r.conn, node, nodeClass, "next")
		if err != nil {
			return "", err
		}
	}
	if size > collectionLimit {
		fmt.Fprintf(&b, "  ... (%d more elements)\n", size-collectionLimit)
	}

	return b.String(), nil
}

// entryLine renders one "key = value" line from a map entry node.
func (s *Session) entryLine(ctx context.Context, r *renderer, node uint64, nodeClass *ClassInfo) (string, error) {
	key, err := s.objectField(ctx, r.conn, node, nodeClass, "key")
	if err != nil {
		return "", err
	}
	value, err := s.objectField(ctx, r.conn, node, nodeClass, "value")
	if err != nil {
		return "", err
	}
	keyText, err := r.value(ctx, key, "")
	if err != nil {
		return "", err
	}
	valueText, err := r.value(ctx, value, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("  %s = %s\n", keyText, valueText), nil
}

// hashMapEntries walks the bucket table, following each bucket's
// next chain.
func (s *Session) hashMapEntries(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo, size int32) (string, error) {
	var b strings.Builder
	b.WriteString("Entries:\n")

	table, err := s.objectField(ctx, r.conn, objectID, class, "table")
	if err != nil {
		return "", err
	}
	if table.IsNull() || size == 0 {
		return b.String(), nil
	}

	length, err := r.conn.ArrayLength(ctx, table.Object)
	if err != nil {
		return "", err
	}
	buckets, err := r.conn.ArrayValues(ctx, table.Object, 0, length)
	if err != nil {
		return "", err
	}

	count := int32(0)
	for _, bucket := range buckets {
		node := bucket.Object
		var nodeClass *ClassInfo
		for node != 0 && count < collectionLimit {
			if nodeClass == nil {
				_, nodeClass, err = s.resolveObject(ctx, r.conn, node)
				if err != nil {
					return "", err
				}
			}
			line, err := s.entryLine(ctx, r, node, nodeClass)
			if err != nil {
				return "", err
			}
			b.WriteString(line)
			count++

			node, nodeClass, err = s.refField(ctx, r.conn, node, nodeClass, "next")
			if err != nil {
				return "", err
			}
		}
		if count >= collectionLimit {
			break
		}
	}
	if size > collectionLimit {
		fmt.Fprintf(&b, "  ... (%d more entries)\n", size-collectionLimit)
	}

	return b.String(), nil
}

// linkedMapEntries walks the head/after insertion-order chain.
func (s *Session) linkedMapEntries(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo, size int32) (string, error) {
	var b strings.Builder
	b.WriteString("Entries:\n")

	node, nodeClass, err := s.refField(ctx, r.conn, objectID, class, "head")
	if err != nil {
		return "", err
	}

	for count := int32(0); node != 0 && count < collectionLimit; count++ {
		line, err := s.entryLine(ctx, r, node, nodeClass)
		if err != nil {
			return "", err
		}
		b.WriteString(line)

		node, nodeClass, err = s.refField(ctx, r.conn, node, nodeClass, "after")
		if err != nil {
			return "", err
		}
	}
	if size > collectionLimit {
		fmt.Fprintf(&b, "  ... (%d more entries)\n", size-collectionLimit)
	}

	return b.String(), nil
}

// setView renders a set by delegating to its backing map's view.
func (s *Session) setView(ctx context.Context, r *renderer, objectID uint64, class *ClassInfo) (string, error) {
	mapID, mapClass, err := s.refField(ctx, r.conn, objectID, class, "map")
	if err != nil {
		return "", err
	}
	if mapID == 0 {
		return "Elements:\n", nil
	}

	size, err := s.intField(ctx, r.conn, mapID, mapClass, "size")
	if err != nil {
		return "", err
	}

	var entries string
	switch knownShapes[mapClass.Name] {
	case shapeLinkedHashMap:
		entries, err = s.linkedMapEntries(ctx, r, mapID, mapClass, size)
	default:
		entries, err = s.hashMapEntries(ctx, r, mapID, mapClass, size)
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Size: %d\n\n", size)
	b.WriteString(entries)
	return b.String(), nil
}
