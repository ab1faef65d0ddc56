package starttls

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/BSI-Bund/TaSK/internal/transport"
)

func connectedPair(t *testing.T) (*transport.Connection, *transport.Connection) {
	t.Helper()
	ln, err := transport.Listen(0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port

	var server *transport.Connection
	var acceptErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server, acceptErr = ln.Accept(context.Background())
	}()

	client, err := transport.Dial(context.Background(), "127.0.0.1", strconv.Itoa(port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	wg.Wait()
	if acceptErr != nil {
		t.Fatalf("accept: %v", acceptErr)
	}
	return client, server
}

func TestSMTPPreambleCompletesOnBothSides(t *testing.T) {
	client, server := connectedPair(t)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	var clientErr, serverErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		clientErr = Execute(context.Background(), client, ProtocolSMTP, true, 2*time.Second, nil)
	}()
	go func() {
		defer wg.Done()
		serverErr = Execute(context.Background(), server, ProtocolSMTP, false, 2*time.Second, nil)
	}()
	wg.Wait()

	if clientErr != nil {
		t.Fatalf("client: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
}

func TestFTPPreambleCompletesOnBothSides(t *testing.T) {
	client, server := connectedPair(t)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	var clientErr, serverErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		clientErr = Execute(context.Background(), client, ProtocolFTP, true, 2*time.Second, nil)
	}()
	go func() {
		defer wg.Done()
		serverErr = Execute(context.Background(), server, ProtocolFTP, false, 2*time.Second, nil)
	}()
	wg.Wait()

	if clientErr != nil {
		t.Fatalf("client: %v", clientErr)
	}
	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
}

func TestExecuteRejectsUnselectedProtocol(t *testing.T) {
	client, server := connectedPair(t)
	defer client.Close()
	defer server.Close()

	if err := Execute(context.Background(), client, ProtocolNone, true, time.Second, nil); err == nil {
		t.Fatal("expected an error for ProtocolNone")
	}
}
