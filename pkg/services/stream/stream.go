/*
Package stream serves notifications of the write-ahead log to
out-of-process consumers over WebSocket.

A client connects to /ws and receives every notification with an ID
greater than or equal to the "from" query parameter (0 by default) followed
by all notifications committed later. The "format" parameter selects the
message encoding: "json" (the default) sends text messages with an
{"id", "notification"} object, "binary" sends binary messages with the
little-endian 8-byte ID followed by the compatible binary form of the
notification.
*/
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/neo-exex/pkg/config"
	"github.com/nspcc-dev/neo-exex/pkg/core/primitives"
	"github.com/nspcc-dev/neo-exex/pkg/exex"
	"github.com/nspcc-dev/neo-exex/pkg/exex/bincompat"
	"github.com/nspcc-dev/neo-exex/pkg/io"
	"github.com/nspcc-dev/neo-exex/pkg/services/metrics"
	"go.uber.org/zap"
)

const (
	// FormatJSON is the text message format.
	FormatJSON = "json"
	// FormatBinary is the binary message format.
	FormatBinary = "binary"

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Clients have nothing to say except for control frames.
	wsReadLimit = 1024
)

// Source is a log of notifications that can be streamed.
type Source[P primitives.Primitives] interface {
	// Changed returns a channel closed on the next modification.
	Changed() <-chan struct{}
	// IDs returns IDs of all notifications in ascending order.
	IDs() []uint64
	// Get returns the notification with the given ID.
	Get(id uint64) (exex.Notification[P], error)
}

// Message is a single notification sent in the JSON format.
type Message[P primitives.Primitives] struct {
	ID           uint64           `json:"id"`
	Notification exex.Envelope[P] `json:"notification"`
}

// Service streams notifications of a Source to WebSocket clients.
type Service[P primitives.Primitives] struct {
	*metrics.Service

	src        Source[P]
	log        *zap.Logger
	upgrader   websocket.Upgrader
	maxClients int

	lock     sync.Mutex
	clients  int
	shutdown chan struct{}
	stopped  bool
}

// New creates a stream service for the given source. Nil logger disables
// logging.
func New[P primitives.Primitives](cfg config.Stream, src Source[P], log *zap.Logger) *Service[P] {
	if log == nil {
		log = zap.NewNop()
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = config.DefaultStreamMaxClients
	}
	s := &Service[P]{
		src:        src,
		log:        log.With(zap.String("service", "Stream")),
		upgrader:   websocket.Upgrader{},
		maxClients: maxClients,
		shutdown:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: wsWriteLimit,
		}
	}
	s.Service = metrics.NewService("Stream", srvs, cfg.BasicService, log)
	return s
}

// ShutDown disconnects all clients and stops the service.
func (s *Service[P]) ShutDown() {
	s.lock.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.shutdown)
	}
	s.lock.Unlock()
	s.Service.ShutDown()
}

func (s *Service[P]) handleWS(w http.ResponseWriter, r *http.Request) {
	var (
		q      = r.URL.Query()
		from   uint64
		format = FormatJSON
		err    error
	)
	if v := q.Get("from"); v != "" {
		from, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid 'from' parameter: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("format"); v != "" {
		if v != FormatJSON && v != FormatBinary {
			http.Error(w, "unknown format: "+v, http.StatusBadRequest)
			return
		}
		format = v
	}

	s.lock.Lock()
	if s.clients >= s.maxClients {
		s.lock.Unlock()
		http.Error(w, "websocket users limit reached", http.StatusServiceUnavailable)
		return
	}
	s.clients++
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		s.clients--
		s.lock.Unlock()
	}()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket connection upgrade failed", zap.Error(err))
		return
	}
	s.log.Info("stream client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Uint64("from", from),
		zap.String("format", format))

	done := make(chan struct{})
	go s.handleWsReads(ws, done)
	sent, err := s.handleWsWrites(ws, from, format, done)
	s.log.Info("stream client disconnected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("sent", sent),
		zap.Error(err))
}

// handleWsWrites sends notifications starting with the given ID until the
// client goes away or the service is stopped. It returns the number of
// notifications sent.
func (s *Service[P]) handleWsWrites(ws *websocket.Conn, next uint64, format string, done <-chan struct{}) (int, error) {
	var (
		sent       int
		pingTicker = time.NewTicker(wsPingPeriod)
	)
	defer func() {
		pingTicker.Stop()
		ws.Close()
	}()
	for {
		changed := s.src.Changed()
		for _, id := range s.src.IDs() {
			if id < next {
				continue
			}
			n, err := s.src.Get(id)
			if err != nil {
				return sent, err
			}
			typ, data, err := encodeMessage(id, n, format)
			if err != nil {
				return sent, err
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				return sent, err
			}
			if err := ws.WriteMessage(typ, data); err != nil {
				return sent, err
			}
			next = id + 1
			sent++
		}
		select {
		case <-changed:
		case <-done:
			return sent, nil
		case <-s.shutdown:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err == nil {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			}
			return sent, nil
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				return sent, err
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return sent, err
			}
		}
	}
}

// handleWsReads handles control frames and closes done once the connection
// is gone.
func (s *Service[P]) handleWsReads(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
	for err == nil {
		_, _, err = ws.ReadMessage()
	}
}

func encodeMessage[P primitives.Primitives](id uint64, n exex.Notification[P], format string) (int, []byte, error) {
	if format == FormatJSON {
		data, err := json.Marshal(Message[P]{ID: id, Notification: exex.Envelope[P]{Notification: n}})
		return websocket.TextMessage, data, err
	}
	w := io.NewBufBinWriter()
	w.WriteU64LE(id)
	bincompat.As[P]{}.EncodeBinaryAs(w.BinWriter, n)
	if w.Err != nil {
		return 0, nil, w.Err
	}
	return websocket.BinaryMessage, w.Bytes(), nil
}

// DecodeBinaryMessage decodes a message sent in the binary format.
func DecodeBinaryMessage[P primitives.Primitives](data []byte) (uint64, exex.Notification[P], error) {
	if len(data) < 8 {
		return 0, nil, errors.New("message is too short")
	}
	r := io.NewBinReaderFromBuf(data[:8])
	id := r.ReadU64LE()
	n, err := bincompat.Decode[P](data[8:])
	if err != nil {
		return 0, nil, err
	}
	return id, n, nil
}
