package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorecast/lorecast/pkg/audio/pcm"
	"github.com/lorecast/lorecast/pkg/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// The UI is served from the same origin in production; the CLI
	// server is loopback-only by default.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the frame format on the live bridge, both directions.
// Audio payloads are base64 raw PCM: mono capture up (16 kHz unless the
// client declares another rate), 24 kHz mono down. Downlink audio
// carries playAt, the scheduled start in Unix milliseconds, so the
// client can queue chunks gaplessly.
type wsMessage struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	PlayAt int64  `json:"playAt,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	wsAudio        = "audio"
	wsInterrupted  = "interrupted"
	wsTurnComplete = "turnComplete"
	wsError        = "error"
)

// wsSource adapts uplink socket frames into a capture stream. The
// session reframes it to its fixed uplink frame size, and wraps it in
// the rate converter when the client captures at a non-16 kHz rate.
type wsSource struct {
	rate     int
	frames   chan []byte
	leftover []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSSource(rate int) *wsSource {
	return &wsSource{
		rate:   rate,
		frames: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (s *wsSource) push(frame []byte) {
	select {
	case s.frames <- frame:
	case <-s.closed:
	}
}

func (s *wsSource) Read(p []byte) (int, error) {
	if len(s.leftover) == 0 {
		select {
		case f := <-s.frames:
			s.leftover = f
		case <-s.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, s.leftover)
	s.leftover = s.leftover[n:]
	return n, nil
}

func (s *wsSource) SampleRate() int { return s.rate }

func (s *wsSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// wsSink relays scheduled model audio to the client.
type wsSink struct {
	conn *websocket.Conn
	mu   *sync.Mutex
}

func (s *wsSink) PlayAt(audio []byte, start time.Time) error {
	return writeWS(s.conn, s.mu, wsMessage{
		Type:   wsAudio,
		Data:   pcm.EncodeBase64(audio),
		PlayAt: start.UnixMilli(),
	})
}

func (s *wsSink) Discard() {
	writeWS(s.conn, s.mu, wsMessage{Type: wsInterrupted})
}

func (s *wsSink) TurnComplete() {
	writeWS(s.conn, s.mu, wsMessage{Type: wsTurnComplete})
}

// handleLive bridges one websocket to one live model session. Socket
// frames feed the session's capture side; the session's sink writes
// scheduled audio back. Either end closing tears the other down.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("live upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex

	rate := pcm.L16Mono16K.SampleRate()
	if v := r.URL.Query().Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeWS(conn, &writeMu, wsMessage{Type: wsError, Error: "bad capture rate"})
			return
		}
		rate = n
	}

	source := newWSSource(rate)
	sess, err := live.Connect(r.Context(), live.Options{
		Dialer: s.dialer,
		OpenSource: func(context.Context) (live.CaptureSource, error) {
			return source, nil
		},
		Sink:              &wsSink{conn: conn, mu: &writeMu},
		SystemInstruction: s.liveInstruction,
		Voice:             s.liveVoice,
		Logger:            s.logger,
	})
	if err != nil {
		s.logger.Warn("live dial failed", "err", err)
		writeWS(conn, &writeMu, wsMessage{Type: wsError, Error: err.Error()})
		return
	}

	// The model side stopping unblocks the socket read loop below.
	go func() {
		<-sess.Done()
		conn.Close()
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type != wsAudio {
			continue
		}
		frame, err := pcm.DecodeBase64(msg.Data)
		if err != nil {
			writeWS(conn, &writeMu, wsMessage{Type: wsError, Error: "bad audio payload"})
			continue
		}
		source.push(frame)
	}

	sess.Close()
	<-sess.Done()
}

func writeWS(conn *websocket.Conn, mu *sync.Mutex, msg wsMessage) error {
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteJSON(msg)
}
