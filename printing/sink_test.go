package printing

import (
	"bytes"
	"io"
	"net"
	"testing"

	"printedge/config"
)

func TestNewSelectsTarget(t *testing.T) {
	s, err := New(&config.PrinterConfig{Target: "console"})
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	if _, ok := s.(*ConsoleSink); !ok {
		t.Errorf("target console gave %T", s)
	}

	s, err = New(&config.PrinterConfig{Target: "network", Host: "10.0.0.5"})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	ns, ok := s.(*NetworkSink)
	if !ok {
		t.Fatalf("target network gave %T", s)
	}
	if ns.addr != "10.0.0.5:9100" {
		t.Errorf("default port: addr = %s", ns.addr)
	}

	if _, err := New(&config.PrinterConfig{Target: "network"}); err == nil {
		t.Error("network without host should fail")
	}
	if _, err := New(&config.PrinterConfig{Target: "fax"}); err == nil {
		t.Error("unknown target should fail")
	}
}

func TestConsoleSinkWrites(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	if err := s.Submit([]byte("receipt body\n")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if buf.String() != "receipt body\n" {
		t.Errorf("wrote %q", buf.String())
	}
}

func TestNetworkSinkSendsDataAndTrailer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s := NewNetworkSink("127.0.0.1", addr.Port)
	if err := s.Submit([]byte("PEDIDO #1\n")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	data := <-received
	if !bytes.HasPrefix(data, []byte("PEDIDO #1\n")) {
		t.Errorf("data prefix = %q", data)
	}
	if !bytes.HasSuffix(data, escposTrailer) {
		t.Errorf("missing ESC/POS trailer: %q", data)
	}
}

func TestNetworkSinkUnreachable(t *testing.T) {
	s := NewNetworkSink("127.0.0.1", 1)
	if err := s.Submit([]byte("x")); err == nil {
		t.Error("expected connection error")
	}
}
