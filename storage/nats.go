package storage

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ConnectOptions selects an external NATS server or an embedded one.
// When URL is empty or Embedded is set, an in-process server is started;
// StoreDir is where its JetStream data lives in that case.
type ConnectOptions struct {
	URL      string
	Embedded bool
	StoreDir string
}

// Session owns a NATS connection and, in embedded mode, the server
// behind it. Close releases both.
type Session struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	embedded *server.Server
}

// Connect establishes a NATS session per the options.
func Connect(opts ConnectOptions) (*Session, error) {
	sess := &Session{}

	if opts.URL != "" && !opts.Embedded {
		conn, err := nats.Connect(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		sess.conn = conn
	} else {
		ns, err := server.NewServer(&server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  opts.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server failed to start")
		}

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}

		sess.embedded = ns
		sess.conn = conn
	}

	js, err := jetstream.New(sess.conn)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	sess.js = js

	return sess, nil
}

// JetStream returns the session's JetStream context.
func (s *Session) JetStream() jetstream.JetStream {
	return s.js
}

// Conn returns the underlying NATS connection.
func (s *Session) Conn() *nats.Conn {
	return s.conn
}

// Close drains the connection and stops the embedded server if one is
// running.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Drain()
		s.conn.Close()
	}
	if s.embedded != nil {
		s.embedded.Shutdown()
		s.embedded.WaitForShutdown()
	}
}
