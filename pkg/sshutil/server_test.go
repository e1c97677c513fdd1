package sshutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testServer is an in-process SSH server that runs a handful of fake
// commands over exec requests and accepts a single password.
type testServer struct {
	addr     string
	port     int
	hostKey  ssh.Signer
	password string

	mu       sync.Mutex
	signals  []string
	commands []string
	conns    []*ssh.ServerConn
}

func newTestServer(t *testing.T, password string) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	srv := &testServer{hostKey: signer, password: password}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == srv.password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %s", c.User())
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv.addr = ln.Addr().String()
	srv.port = ln.Addr().(*net.TCPAddr).Port

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn, cfg)
		}
	}()

	return srv
}

func (s *testServer) serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	s.mu.Lock()
	s.conns = append(s.conns, sconn)
	s.mu.Unlock()

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(sconn.User(), ch, chReqs)
	}
}

func (s *testServer) serveSession(user string, ch ssh.Channel, reqs <-chan *ssh.Request) {
	stop := make(chan struct{})
	var once sync.Once
	halt := func() { once.Do(func() { close(stop) }) }
	defer halt()

	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			go func(cmd string) {
				status := runFake(cmd, user, ch, ch.Stderr(), stop)
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
				_ = ch.Close()
			}(payload.Command)

		case "signal":
			var payload struct{ Signal string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			s.mu.Lock()
			s.signals = append(s.signals, payload.Signal)
			s.mu.Unlock()
			halt()

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

// runFake implements the commands the tests use.
func runFake(cmd, user string, stdout, stderr io.Writer, stop <-chan struct{}) int {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return 0
	}

	switch fields[0] {
	case "whoami":
		fmt.Fprintln(stdout, user)
		return 0
	case "echo":
		fmt.Fprintln(stdout, strings.Join(fields[1:], " "))
		return 0
	case "fail":
		fmt.Fprintln(stderr, "fail: it failed")
		code, _ := strconv.Atoi(fields[1])
		return code
	case "block":
		fmt.Fprintln(stdout, "started")
		<-stop
		return 130
	default:
		fmt.Fprintf(stderr, "%s: command not found\n", fields[0])
		return 127
	}
}

func (s *testServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// dropConnections closes every accepted connection from the server side.
func (s *testServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *testServer) receivedSignals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signals...)
}

// options returns ConnectOptions that reach s with password auth only and
// an isolated known_hosts file.
func (s *testServer) options(t *testing.T, knownHosts string) ConnectOptions {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")

	return ConnectOptions{
		Host:           "127.0.0.1",
		Port:           s.port,
		User:           "alice",
		Password:       s.password,
		ConfigFile:     filepath.Join(t.TempDir(), "no-config"),
		KnownHostsFile: knownHosts,
	}
}

func dialTestServer(t *testing.T, srv *testServer, knownHosts string) *Client {
	t.Helper()
	client, err := Dial(context.Background(), srv.options(t, knownHosts))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newClosedPort returns a localhost port with nothing listening on it.
func newClosedPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return port, ln.Close()
}
