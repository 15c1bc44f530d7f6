package printing

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"printedge/config"
)

// Sink receives rendered receipts.
type Sink interface {
	Name() string
	Submit(receipt []byte) error
}

// New builds the sink selected by config.
func New(cfg *config.PrinterConfig) (Sink, error) {
	switch cfg.Target {
	case "", "console":
		return NewConsoleSink(nil), nil
	case "network":
		if cfg.Host == "" {
			return nil, fmt.Errorf("network printer requires a host")
		}
		return NewNetworkSink(cfg.Host, cfg.Port), nil
	default:
		return nil, fmt.Errorf("unknown printer target: %s", cfg.Target)
	}
}

// ConsoleSink writes receipts to a writer, stdout by default. Useful
// for development and as a last-resort fallback.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Submit(receipt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(receipt); err != nil {
		return fmt.Errorf("console sink: %w", err)
	}
	return nil
}

// ESC/POS trailer: feed 3 lines, partial cut. Works on the common
// Epson-compatible thermal printers (TM-T20X, Elgin i9, POS80).
var escposTrailer = []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x42, 0x00}

// NetworkSink sends receipts to a thermal printer over raw TCP. Port
// 9100 is the de-facto standard for RAW printing.
type NetworkSink struct {
	addr         string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewNetworkSink(host string, port int) *NetworkSink {
	if port <= 0 {
		port = 9100
	}
	return &NetworkSink{
		addr:         net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		dialTimeout:  5 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

func (s *NetworkSink) Name() string { return "network:" + s.addr }

func (s *NetworkSink) Submit(receipt []byte) error {
	conn, err := net.DialTimeout("tcp", s.addr, s.dialTimeout)
	if err != nil {
		return fmt.Errorf("printer %s: %w", s.addr, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if _, err := conn.Write(receipt); err != nil {
		return fmt.Errorf("printer %s write: %w", s.addr, err)
	}
	if _, err := conn.Write(escposTrailer); err != nil {
		return fmt.Errorf("printer %s trailer: %w", s.addr, err)
	}
	return nil
}

// Probe checks whether the printer accepts connections, for the status
// page and setup flow.
func (s *NetworkSink) Probe() error {
	conn, err := net.DialTimeout("tcp", s.addr, s.dialTimeout)
	if err != nil {
		return fmt.Errorf("printer %s: %w", s.addr, err)
	}
	conn.Close()
	return nil
}
