package snmpagent

import (
	"fmt"
	"net"

	"github.com/gosnmp/gosnmp"

	"github.com/krisarmstrong/hmeshd/pkg/logging"
)

// Server binds an Agent to a real UDP socket, decoding and answering
// SNMP v2c requests with gosnmp's own packet codec, the same
// SnmpDecodePacket/MarshalMsg pair the teacher's protocols.SNMPHandler
// uses against its simulated IP stack.
type Server struct {
	agent *Agent
	conn  *net.UDPConn
	stop  chan struct{}
	done  chan struct{}
}

// Listen binds addr (e.g. "0.0.0.0:1161") and returns a Server ready to Serve.
func Listen(addr string, agent *Agent) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("snmpagent: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("snmpagent: listen %s: %w", addr, err)
	}
	return &Server{agent: agent, conn: conn, stop: make(chan struct{}), done: make(chan struct{})}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve reads and answers requests until Stop is called.
func (s *Server) Serve() error {
	defer close(s.done)
	buf := make([]byte, 65507)
	for {
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
				return fmt.Errorf("snmpagent: read: %w", err)
			}
		}
		s.handleRequest(append([]byte(nil), buf[:n]...), peer)
	}
}

func (s *Server) handleRequest(payload []byte, peer *net.UDPAddr) {
	decoder := gosnmp.GoSNMP{
		Transport: "udp",
		Version:   gosnmp.Version2c,
		Community: s.agent.Community(),
		MaxOids:   gosnmp.MaxOids,
	}
	req, err := decoder.SnmpDecodePacket(payload)
	if err != nil {
		logging.Debug("snmpagent: decode failed from %s: %v", peer, err)
		return
	}
	if req.Community != s.agent.Community() {
		logging.Debug("snmpagent: community mismatch from %s", peer)
		return
	}

	respVars := s.agent.ProcessPDU(req.PDUType, req.Variables)
	resp := &gosnmp.SnmpPacket{
		Version:    req.Version,
		Community:  req.Community,
		PDUType:    gosnmp.GetResponse,
		RequestID:  req.RequestID,
		Error:      gosnmp.NoError,
		ErrorIndex: 0,
		Variables:  respVars,
	}
	out, err := resp.MarshalMsg()
	if err != nil {
		logging.Warning("snmpagent: marshal response for %s failed: %v", peer, err)
		return
	}
	if _, err := s.conn.WriteToUDP(out, peer); err != nil {
		logging.Warning("snmpagent: write to %s failed: %v", peer, err)
	}
}

// Stop closes the socket and waits for Serve to return.
func (s *Server) Stop() {
	close(s.stop)
	s.conn.Close()
	<-s.done
}
