package jdwp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
	"github.com/debuggerx/jdwp-mcp/internal/jdwptest"
)

func TestDialAndVersion(t *testing.T) {
	vm := jdwptest.NewVM()
	vm.VMName = "OpenJDK 64-Bit Server VM"
	vm.VMVersion = "17.0.2"
	srv := jdwptest.Start(t, vm)

	conn, err := jdwp.Dial(context.Background(), srv.Host(), srv.Port())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	v, err := conn.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.VMName != "OpenJDK 64-Bit Server VM" || v.VMVersion != "17.0.2" {
		t.Errorf("Version = %+v", v)
	}

	sizes := conn.Sizes()
	if sizes.ObjectID != 8 || sizes.FrameID != 8 {
		t.Errorf("negotiated sizes = %+v", sizes)
	}
}

func TestDialRefused(t *testing.T) {
	// Grab a port nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, port := listenerAddr(t, ln)
	ln.Close()

	_, err = jdwp.Dial(context.Background(), host, port)
	if !errors.Is(err, jdwp.ErrConnectionRefused) {
		t.Fatalf("err = %v, want ErrConnectionRefused", err)
	}
}

func TestDialHandshakeRejected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		banner := make([]byte, len(jdwp.Handshake))
		io.ReadFull(conn, banner)
		conn.Write([]byte("HTTP/1.1 400 No"))
	}()

	host, port := listenerAddr(t, ln)
	_, err = jdwp.Dial(context.Background(), host, port)
	if !errors.Is(err, jdwp.ErrHandshakeFailed) {
		t.Fatalf("err = %v, want ErrHandshakeFailed", err)
	}
}

func TestCommandErrorSurfaced(t *testing.T) {
	srv := jdwptest.Start(t, jdwptest.NewVM())
	conn, err := jdwp.Dial(context.Background(), srv.Host(), srv.Port())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_, err = conn.ThreadName(context.Background(), 999)
	var cmdErr *jdwp.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.Code != jdwp.ErrCodeInvalidThread {
		t.Errorf("code = %d, want INVALID_THREAD", cmdErr.Code)
	}
}

// scripted starts a raw server that completes the handshake, answers
// the IDSizes negotiation and then hands the socket to script.
func scripted(t *testing.T, script func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		banner := make([]byte, len(jdwp.Handshake))
		if _, err := io.ReadFull(conn, banner); err != nil {
			return
		}
		if _, err := conn.Write(jdwp.Handshake); err != nil {
			return
		}

		p, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		sizes := jdwp.NewEncoder(jdwp.DefaultIDSizes()).Int(8).Int(8).Int(8).Int(8).Int(8)
		jdwp.WritePacket(conn, &jdwp.Packet{ID: p.ID, Flags: jdwp.FlagReply, Data: sizes.Bytes()})

		script(conn)
	}()

	return listenerAddr(t, ln)
}

func TestOutOfOrderReplies(t *testing.T) {
	// The server reads two commands and answers them in reverse order,
	// echoing each request payload. Both callers must still receive the
	// reply matching their own request.
	host, port := scripted(t, func(conn net.Conn) {
		first, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		second, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		jdwp.WritePacket(conn, &jdwp.Packet{ID: second.ID, Flags: jdwp.FlagReply, Data: second.Data})
		jdwp.WritePacket(conn, &jdwp.Packet{ID: first.ID, Flags: jdwp.FlagReply, Data: first.Data})
	})

	conn, err := jdwp.Dial(context.Background(), host, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	payloads := [][]byte{{0xAA, 1}, {0xBB, 2}}
	var wg sync.WaitGroup
	errs := make([]error, len(payloads))
	results := make([][]byte, len(payloads))

	for i, payload := range payloads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = conn.Send(context.Background(), 200, 1, payload)
		}()
		// Hold wire order so the server's two reads see both commands.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	for i := range payloads {
		if errs[i] != nil {
			t.Fatalf("send %d: %v", i, errs[i])
		}
		if string(results[i]) != string(payloads[i]) {
			t.Errorf("send %d got %v, want %v", i, results[i], payloads[i])
		}
	}
}

func TestTimeoutDropsStaleReply(t *testing.T) {
	// The first reply arrives after its caller gave up; the read loop
	// must drop it instead of delivering it to the next caller.
	host, port := scripted(t, func(conn net.Conn) {
		first, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		time.Sleep(400 * time.Millisecond)
		jdwp.WritePacket(conn, &jdwp.Packet{ID: first.ID, Flags: jdwp.FlagReply, Data: first.Data})

		second, err := jdwp.ReadPacket(conn)
		if err != nil {
			return
		}
		jdwp.WritePacket(conn, &jdwp.Packet{ID: second.ID, Flags: jdwp.FlagReply, Data: second.Data})
	})

	conn, err := jdwp.Dial(context.Background(), host, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = conn.Send(ctx, 200, 1, []byte{0xAA})
	if !errors.Is(err, jdwp.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	got, err := conn.Send(context.Background(), 200, 1, []byte{0xBB})
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if string(got) != string([]byte{0xBB}) {
		t.Errorf("second send got %v, want the second payload", got)
	}
}

func TestCloseWakesWaiters(t *testing.T) {
	host, port := scripted(t, func(conn net.Conn) {
		// Swallow everything; never reply.
		io.Copy(io.Discard, conn)
	})

	conn, err := jdwp.Dial(context.Background(), host, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(context.Background(), 200, 1, nil)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	conn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, jdwp.ErrConnectionClosed) {
			t.Fatalf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Close")
	}

	if !conn.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := conn.Send(context.Background(), 200, 1, nil); !errors.Is(err, jdwp.ErrConnectionClosed) {
		t.Errorf("send after close: err = %v, want ErrConnectionClosed", err)
	}
}

func TestPeerDisconnectFailsPending(t *testing.T) {
	host, port := scripted(t, func(conn net.Conn) {
		jdwp.ReadPacket(conn)
		conn.Close()
	})

	conn, err := jdwp.Dial(context.Background(), host, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_, err = conn.Send(context.Background(), 200, 1, nil)
	if !errors.Is(err, jdwp.ErrConnectionClosed) {
		t.Fatalf("err = %v, want ErrConnectionClosed", err)
	}
}

func listenerAddr(t *testing.T, ln net.Listener) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}
