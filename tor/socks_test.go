package tor

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
)

// testSOCKS is a SOCKS5 server that only knows CONNECT.  Instead of dialing
// out it echoes on the client connection, and it refuses the host "refused".
type testSOCKS struct {
	l net.Listener

	mtx   sync.Mutex
	hosts []string
}

func newTestSOCKS(t *testing.T) *testSOCKS {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &testSOCKS{l: l}
	go s.serve()
	t.Cleanup(func() { l.Close() })
	return s
}

func (s *testSOCKS) port() uint16 {
	return uint16(s.l.Addr().(*net.TCPAddr).Port)
}

func (s *testSOCKS) requested() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]string(nil), s.hosts...)
}

func (s *testSOCKS) serve() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *testSOCKS) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 2)
	if _, err := io.ReadFull(conn, buf); err != nil || buf[0] != 0x05 {
		return
	}
	methods := make([]byte, int(buf[1]))
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	conn.Write([]byte{0x05, 0x00})

	host, port, err := readRequest(conn)
	if err != nil {
		writeReply(conn, 0x07)
		return
	}

	s.mtx.Lock()
	s.hosts = append(s.hosts, fmt.Sprintf("%s:%d", host, port))
	s.mtx.Unlock()

	if host == "refused" {
		writeReply(conn, 0x05)
		return
	}

	writeReply(conn, 0x00)
	io.Copy(conn, conn)
}

func readRequest(conn net.Conn) (string, int, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return "", 0, err
	}
	if hdr[1] != 0x01 {
		return "", 0, fmt.Errorf("only CONNECT supported")
	}

	var host string
	switch hdr[3] {
	case 0x01:
		addr := make([]byte, 4)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return "", 0, err
		}
		host = net.IP(addr).String()
	case 0x03:
		l := make([]byte, 1)
		if _, err := io.ReadFull(conn, l); err != nil {
			return "", 0, err
		}
		name := make([]byte, int(l[0]))
		if _, err := io.ReadFull(conn, name); err != nil {
			return "", 0, err
		}
		host = string(name)
	default:
		return "", 0, fmt.Errorf("address type %d", hdr[3])
	}

	p := make([]byte, 2)
	if _, err := io.ReadFull(conn, p); err != nil {
		return "", 0, err
	}
	return host, int(binary.BigEndian.Uint16(p)), nil
}

func writeReply(conn net.Conn, status byte) {
	conn.Write([]byte{0x05, status, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
}
