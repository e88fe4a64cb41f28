package appserver

import (
	"sync"
	"time"

	"github.com/GaaneshT/codex/pkg/conversation"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/gorilla/websocket"
)

// connection is one websocket client bound to one conversation.
type connection struct {
	ID          string
	Conn        *websocket.Conn
	Codex       *conversation.Codex
	ConnectedAt time.Time
	IPAddress   string

	// writeMu serializes frames; websocket.Conn allows one writer.
	writeMu sync.Mutex

	// idMu guards clientIDs. Submit and the id mapping happen under it so the
	// event pump never sees a server id before its client id is known.
	idMu      sync.Mutex
	clientIDs map[string]string
}

func newConnection(id string, conn *websocket.Conn, codex *conversation.Codex, remote string) *connection {
	return &connection{
		ID:          id,
		Conn:        conn,
		Codex:       codex,
		ConnectedAt: time.Now(),
		IPAddress:   remote,
		clientIDs:   make(map[string]string),
	}
}

func (c *connection) writeEvent(ev protocol.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteJSON(ev)
}

func (c *connection) writeClose(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeTimeout))
	// Unblock the reader if the peer never answers the close.
	_ = c.Conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
}

// clientID maps a session-assigned submission id back to the id the client
// sent with it. Ids the client did not name pass through unchanged.
func (c *connection) clientID(serverID string) string {
	c.idMu.Lock()
	defer c.idMu.Unlock()

	if id, ok := c.clientIDs[serverID]; ok {
		return id
	}
	return serverID
}

// registry tracks live connections.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func newRegistry() *registry {
	return &registry{
		conns: make(map[string]*connection),
	}
}

func (r *registry) Add(c *connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID] = c
	return len(r.conns)
}

func (r *registry) Remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, id)
	return len(r.conns)
}

func (r *registry) GetAll() []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
