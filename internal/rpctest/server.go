// Package rpctest is an in-process ONC-RPC server for exercising the NFS
// client engines without a real NFS server: it listens on a loopback TCP
// port, decodes incoming call headers with the rpc package's own framing,
// and dispatches to handlers registered per (program, version, procedure).
// Tests dial it the same way production code dials a real server, via
// rpc.DialTCP against Server.Addr().
package rpctest

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/marmos91/nfsclient/internal/rpc"
)

// Handler answers one RPC call: args is the procedure-specific argument
// bytes immediately following the call header, already past credential and
// verifier. A non-nil error produces an AcceptSystemErr reply; result is
// the raw XDR-encoded reply body the handler is responsible for producing.
type Handler func(hdr *rpc.CallHeader, args []byte) (result []byte, err error)

type progKey struct {
	program, version, procedure uint32
}

// Server is a minimal loopback ONC-RPC responder. The zero value is not
// usable; construct with NewServer.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	handlers map[progKey]Handler

	wg     sync.WaitGroup
	closed chan struct{}
}

// NewServer starts listening on an OS-assigned loopback port and begins
// accepting connections in the background. Call Close when done.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("rpctest: listen: %w", err)
	}
	s := &Server{
		ln:       ln,
		handlers: make(map[progKey]Handler),
		closed:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the "host:port" string to dial (via rpc.DialTCP).
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Handle registers h to answer calls for (program, version, procedure),
// replacing any previous registration for the same triple.
func (s *Server) Handle(program, version, procedure uint32, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[progKey{program, version, procedure}] = h
}

// Close stops accepting new connections and waits for in-flight ones to
// finish reading.
func (s *Server) Close() error {
	close(s.closed)
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				return
			}
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		record, err := rpc.ReadRecord(conn)
		if err != nil {
			return
		}
		r := bytes.NewReader(record)
		hdr, err := rpc.DecodeCallHeader(r)
		if err != nil {
			return
		}
		args := make([]byte, r.Len())
		if _, err := io.ReadFull(r, args); err != nil {
			return
		}

		reply, err := s.dispatch(hdr, args)
		if err != nil {
			return
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(hdr *rpc.CallHeader, args []byte) ([]byte, error) {
	s.mu.Lock()
	h, ok := s.handlers[progKey{hdr.Program, hdr.Version, hdr.Procedure}]
	s.mu.Unlock()

	if !ok {
		return rpc.EncodeAcceptStatReply(hdr.XID, rpc.AcceptProcUnavail)
	}
	result, err := h(hdr, args)
	if err != nil {
		return rpc.EncodeAcceptStatReply(hdr.XID, rpc.AcceptSystemErr)
	}
	return rpc.EncodeAcceptedReply(hdr.XID, result)
}
