// Package bridge exposes a remote JVM's suspended execution state as
// callable operations: thread and stack listing, local variables,
// object fields with smart collection views, and method invocation
// inside a suspended thread. All operation results are plain text with
// a stable convention (Object#<id> references, "<type> <name> = <value>"
// lines) that downstream tooling pattern-matches on.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// State is the lifecycle state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateClosed
)

// Session is one bridge instance's connection to a target JVM. All
// state is explicit on the value; operations are safe for concurrent
// use and each awaits its own reply on the shared connection.
type Session struct {
	mu      sync.Mutex
	state   State
	conn    *jdwp.Conn
	version jdwp.VersionInfo

	cache   *RefCache
	timeout time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout sets the per-operation reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// DefaultTimeout bounds each operation's protocol round trips.
const DefaultTimeout = 15 * time.Second

// NewSession returns a disconnected session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		cache:   NewRefCache(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect attaches to a JDWP target. A session holds at most one live
// connection; connecting while already attached reports the existing
// target instead of replacing it.
func (s *Session) Connect(ctx context.Context, host string, port int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnected && s.conn != nil && !s.conn.Closed() {
		return fmt.Sprintf("Already connected to %s", s.version.VMName), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := jdwp.Dial(ctx, host, port)
	if err != nil {
		return "", err
	}

	version, err := conn.Version(ctx)
	if err != nil {
		conn.Close()
		return "", translateErr(err)
	}

	s.conn = conn
	s.version = version
	s.state = StateConnected
	s.cache.Reset()

	return fmt.Sprintf("Connected to %s (version %s)", version.VMName, version.VMVersion), nil
}

// Disconnect closes the socket and invalidates every cached reference.
// Outstanding waiters fail with ErrNotConnected rather than hanging.
func (s *Session) Disconnect() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.state == StateDisconnected {
		return "Not connected"
	}

	s.conn.Close()
	s.conn = nil
	s.state = StateDisconnected
	s.cache.Reset()

	return "Disconnected"
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cache exposes the reference cache (tests assert its invariants).
func (s *Session) Cache() *RefCache { return s.cache }

// begin checks connectivity and returns the connection plus a
// deadline-bounded context for one operation.
func (s *Session) begin(ctx context.Context) (*jdwp.Conn, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.state != StateConnected {
		return nil, nil, nil, ErrNotConnected
	}
	if s.conn.Closed() {
		// The read loop died since the last call: fatal, fail fast.
		s.state = StateClosed
		return nil, nil, nil, ErrNotConnected
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.conn, opCtx, cancel, nil
}

// finish classifies an operation error: transport-level failures close
// the session so every subsequent call fails fast with ErrNotConnected.
func (s *Session) finish(err error) error {
	if err == nil {
		return nil
	}
	err = translateErr(err)
	if !recoverable(err) {
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.state = StateClosed
		s.mu.Unlock()
		return ErrNotConnected
	}
	return err
}

// classInfo resolves (and caches) the layout of a reference type:
// readable name, all fields including inherited ones, and all methods
// with their declaring class.
func (s *Session) classInfo(ctx context.Context, conn *jdwp.Conn, refType uint64) (*ClassInfo, error) {
	if info, ok := s.cache.Class(refType); ok {
		return info, nil
	}

	sig, err := conn.TypeSignature(ctx, refType)
	if err != nil {
		return nil, err
	}
	info := &ClassInfo{ID: refType, Name: TypeName(sig)}

	// Arrays have no fields or methods to walk.
	if len(sig) > 0 && sig[0] == '[' {
		s.cache.StoreClass(info)
		return info, nil
	}

	// Walk the superclass chain; collect superclass fields first so the
	// flattened order reads base-to-derived like a class definition.
	type level struct {
		id   uint64
		name string
	}
	var chain []level
	for id := refType; id != 0; {
		name := info.Name
		if id != refType {
			levelSig, err := conn.TypeSignature(ctx, id)
			if err != nil {
				return nil, err
			}
			name = TypeName(levelSig)
		}
		chain = append(chain, level{id: id, name: name})
		super, err := conn.Superclass(ctx, id)
		if err != nil {
			// Interfaces have no superclass command; stop the walk.
			break
		}
		id = super
	}

	for i := len(chain) - 1; i >= 0; i-- {
		fields, err := conn.FieldsOf(ctx, chain[i].id)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			info.Fields = append(info.Fields, ClassField{FieldInfo: f, DeclaringType: chain[i].name})
		}
		methods, err := conn.MethodsOf(ctx, chain[i].id)
		if err != nil {
			return nil, err
		}
		for _, m := range methods {
			info.Methods = append(info.Methods, ClassMethod{MethodInfo: m, DeclaringClass: chain[i].id})
		}
	}

	s.cache.StoreClass(info)
	return info, nil
}

// resolveObject finds an object's runtime class layout, consulting the
// cache first. The cache is an optimization: an uncached id still
// resolves directly against the target.
func (s *Session) resolveObject(ctx context.Context, conn *jdwp.Conn, objectID uint64) (typeTag byte, info *ClassInfo, err error) {
	typeTag, refType, err := conn.ObjectReferenceType(ctx, objectID)
	if err != nil {
		var cmdErr *jdwp.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == jdwp.ErrCodeInvalidObject {
			return 0, nil, fmt.Errorf("object #%d not found in the target VM. Use jdwp_get_locals to discover objects in the current scope", objectID)
		}
		return 0, nil, err
	}
	info, err = s.classInfo(ctx, conn, refType)
	if err != nil {
		return 0, nil, err
	}
	s.cache.Store(ObjectInfo{ID: objectID, TypeName: info.Name, IsArray: typeTag == jdwp.TypeTagArray})
	return typeTag, info, nil
}
