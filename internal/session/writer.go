package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/collabcast/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// Writer owns the send side of one WebSocket connection. All writes go
// through its goroutine so the connection never sees concurrent writers.
type Writer struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewWriter starts the writer goroutine for a connection.
func NewWriter(connection *websocket.Conn, clock clockwork.Clock) *Writer {
	w := &Writer{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	w.configurePongHandler()
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()

	for {
		select {
		case msg, ok := <-w.sendChannel:
			if !ok {
				return
			}
			start := w.clock.Now()
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(w.clock.Since(start).Seconds())
		case <-ticker.Chan():
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

// TrySend queues bytes for delivery without blocking. Returns false when
// the buffer is full, which the broadcast engine treats as a send failure.
func (w *Writer) TrySend(data []byte) bool {
	select {
	case w.sendChannel <- data:
		return true
	default:
		return false
	}
}

// Stop terminates the writer and closes the connection immediately.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

// StopGraceful sends a WebSocket close frame with reason before closing.
func (w *Writer) StopGraceful(reason string) {
	w.stopOnce.Do(func() {
		// Signal the run goroutine to exit first and wait for it, so the
		// close frame is never written concurrently with a broadcast.
		close(w.doneChannel)
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		w.updateWriteDeadline()
		_ = w.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.connection.Close()
	})
}

func (w *Writer) configurePongHandler() {
	w.updateReadDeadline()
	w.connection.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		return nil
	})
}

func (w *Writer) updateWriteDeadline() {
	_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *Writer) updateReadDeadline() {
	_ = w.connection.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
