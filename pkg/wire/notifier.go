package wire

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"
)

// Notifier pushes notification payloads to a listener over UDP, one JSON
// document per datagram. Losing a datagram is acceptable; notifications are
// advisory and the current state can always be queried.
type Notifier struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewNotifier connects to a listener address such as "192.168.4.2:9998".
func NewNotifier(addr string) (*Notifier, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Notifier{conn: conn}, nil
}

// Send transmits one payload. Failures are logged and dropped.
func (n *Notifier) Send(payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return
	}
	if _, err := n.conn.Write(payload); err != nil {
		log.Warn("notification dropped", "err", err)
	}
}

// Close shuts the underlying socket. Subsequent Sends are no-ops.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
