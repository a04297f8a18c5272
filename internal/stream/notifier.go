package stream

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// event is the JSON shape of every server-to-client frame.
type event struct {
	Type    string  `json:"type"`
	Message string  `json:"message,omitempty"`
	Text    string  `json:"text,omitempty"`
	Level   float64 `json:"level,omitempty"`
}

// wsNotifier forwards notifier callbacks to the client as JSON frames.
// gorilla/websocket allows only one concurrent writer, so all writes funnel
// through a mutex shared with the handler's control responses.
type wsNotifier struct {
	mu     *sync.Mutex
	conn   *websocket.Conn
	logger zerolog.Logger
}

func newWSNotifier(mu *sync.Mutex, conn *websocket.Conn, logger zerolog.Logger) *wsNotifier {
	return &wsNotifier{mu: mu, conn: conn, logger: logger}
}

func (n *wsNotifier) send(ev event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.conn.WriteJSON(ev); err != nil {
		n.logger.Debug().Err(err).Str("event", ev.Type).Msg("Dropped event on closed connection")
	}
}

func (n *wsNotifier) Status(msg string) {
	n.send(event{Type: "status", Message: msg})
}

func (n *wsNotifier) Text(text string) {
	n.send(event{Type: "text", Text: text})
}

func (n *wsNotifier) Subtitle(text string) {
	n.send(event{Type: "subtitle", Text: text})
}

func (n *wsNotifier) AudioLevel(level float64) {
	n.send(event{Type: "audio_level", Level: level})
}
