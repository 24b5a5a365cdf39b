package alme

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/logging"
)

// requestBodyLen gives the fixed body length (after the one-byte type tag)
// for every request type a client may send. The ALME framing has no length
// prefix, so the server must already know each request type's shape.
var requestBodyLen = map[Type]int{
	TypeGetIntfListRequest:     0,
	TypeSetIntfPwrStateRequest: 7, // 6-byte MAC + 1-byte state
	TypeGetIntfPwrStateRequest: 6,
	TypeGetMetricRequest:       6,
	TypeCustomCommandRequest:   1,
}

// Submitter hands a raw ALME request to the AL core and blocks until the
// core has produced a reply, matching spec section 5's reply-rendezvous
// requirement (the engine's per-request reply channel sits behind this
// plain function call, since each TCP connection already serializes its
// own one request/one reply).
type Submitter func(payload []byte) []byte

// Server is the ALME TCP debug/management listener: one request per
// connection, one reply, then close, grounded on the teacher's
// pkg/api/server.go serve-loop/graceful-shutdown idiom re-specified to
// this binary framing instead of HTTP/JSON.
type Server struct {
	ln      net.Listener
	submit  Submitter
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewServer binds addr (e.g. ":8888") and returns a Server ready to Serve.
func NewServer(addr string, submit Submitter) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("alme: listen %s: %w", addr, err)
	}
	return &Server{ln: ln, submit: submit, stopCh: make(chan struct{})}, nil
}

// Addr returns the bound listen address, useful when addr was ":0" in
// tests.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
				return fmt.Errorf("alme: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Server) Stop() {
	close(s.stopCh)
	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var tagBuf [1]byte
	if _, err := io.ReadFull(conn, tagBuf[:]); err != nil {
		logging.Debug("alme: read request type: %v", err)
		return
	}
	t := Type(tagBuf[0])
	bodyLen, known := requestBodyLen[t]
	if !known {
		logging.Warning("alme: unsupported request type 0x%02x from %s", tagBuf[0], conn.RemoteAddr())
		return
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			logging.Debug("alme: read request body: %v", err)
			return
		}
	}

	request := append([]byte{tagBuf[0]}, body...)
	reply := s.submit(request)
	if reply == nil {
		return
	}
	if _, err := conn.Write(reply); err != nil {
		logging.Debug("alme: write reply: %v", err)
	}
}
