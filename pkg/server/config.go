package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/philpax/exoform-sub000/pkg/protocol"
)

// Config holds the server settings. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Host string
	Port int

	// WebSocketAddr enables a WebSocket listener when non-empty.
	WebSocketAddr string
	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string

	// SnapshotPath is the file store base path. Per-room paths are derived
	// from it.
	SnapshotPath string
	// StoreURI selects a snapshot store; empty means the file store.
	StoreURI string
	// SeedScript is a scene script evaluated for rooms with no snapshot.
	SeedScript string

	SavePeriod time.Duration

	// MailboxSize bounds every actor mailbox.
	MailboxSize int
	// OutboundBuffer bounds each peer's queue of messages awaiting the
	// socket writer.
	OutboundBuffer int
	// SendTimeout is how long a sender waits on a full mailbox or
	// outbound queue before giving up on the receiver.
	SendTimeout time.Duration

	MaxFrameSize uint32
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           protocol.DefaultPort,
		SnapshotPath:   "graph.json",
		SavePeriod:     5 * time.Second,
		MailboxSize:    32,
		OutboundBuffer: 32,
		SendTimeout:    2 * time.Second,
		MaxFrameSize:   protocol.DefaultMaxFrameSize,
	}
}

// Addr is the TCP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.SavePeriod <= 0:
		return errors.New("save period must be positive")
	case c.MailboxSize <= 0:
		return errors.New("mailbox size must be positive")
	case c.OutboundBuffer <= 0:
		return errors.New("outbound buffer must be positive")
	case c.SendTimeout <= 0:
		return errors.New("send timeout must be positive")
	case c.MaxFrameSize == 0:
		return errors.New("max frame size must be positive")
	case c.StoreURI == "" && c.SnapshotPath == "":
		return errors.New("snapshot path is required with the file store")
	}
	return nil
}
