package main

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/krisarmstrong/hmeshd/pkg/alme"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

var almeOpts struct {
	addr string
	kind string
	mac  string
}

var almeCmd = &cobra.Command{
	Use:   "alme",
	Short: "Send one ALME request to a running daemon and print the decoded reply",
	Long: `alme dials a running hmeshd's ALME TCP management port, sends one
request built from --type (and --mac where applicable), and prints the
decoded reply. The connection is one request per connection, matching the
ALME server's framing.`,
	RunE: runAlme,
}

func init() {
	rootCmd.AddCommand(almeCmd)

	f := almeCmd.Flags()
	f.StringVar(&almeOpts.addr, "addr", "localhost:8888", "ALME server address")
	f.StringVar(&almeOpts.kind, "type", "get-intf-list", "request type: get-intf-list, get-intf-pwr-state, get-metric")
	f.StringVar(&almeOpts.mac, "mac", "", "target MAC address, for types that take one")
}

func buildAlmeRequest(kind, macStr string) (alme.Message, error) {
	var mac model.MAC
	if macStr != "" {
		m, err := model.ParseMAC(macStr)
		if err != nil {
			return nil, err
		}
		mac = m
	}
	switch kind {
	case "get-intf-list":
		return &alme.GetIntfListRequest{}, nil
	case "get-intf-pwr-state":
		return &alme.GetIntfPwrStateRequest{MAC: mac}, nil
	case "get-metric":
		return &alme.GetMetricRequest{NeighborALMAC: mac}, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", kind)
	}
}

func runAlme(cmd *cobra.Command, args []string) error {
	req, err := buildAlmeRequest(almeOpts.kind, almeOpts.mac)
	if err != nil {
		return withExitCode(exitInvalidArgs, err)
	}

	conn, err := net.DialTimeout("tcp", almeOpts.addr, 5*time.Second)
	if err != nil {
		return withExitCode(exitOSError, fmt.Errorf("dialing %s: %w", almeOpts.addr, err))
	}
	defer conn.Close()

	if _, err := conn.Write(req.Forge()); err != nil {
		return withExitCode(exitOSError, fmt.Errorf("writing request: %w", err))
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := readAlmeReply(conn)
	if err != nil {
		return withExitCode(exitOSError, fmt.Errorf("reading reply: %w", err))
	}

	t, msg, err := alme.Decode(reply)
	if err != nil {
		return withExitCode(exitOSError, fmt.Errorf("decoding reply: %w", err))
	}
	fmt.Printf("%s: %+v\n", t, msg)
	return nil
}

// readAlmeReply reads one ALME PDU off a connection the server will close
// after writing, so a single bufio.Reader drain is enough: there is no
// length prefix to parse ahead of time.
func readAlmeReply(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty reply")
	}
	return buf, nil
}
