package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
)

const (
	streamBuffer  = 16
	writeDeadline = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
)

// Frame is pushed to stream clients once per tick
type Frame struct {
	Now    int64              `json:"now"`
	DTMs   int64              `json:"dt_ms"`
	Values map[string]float64 `json:"values"`
}

// handleStream pushes one frame per animator tick. The listener is attached
// before the upgrade and detached when the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sel := selectors(r)
	frames := make(chan Frame, streamBuffer)

	owner := s.anim.NewOwner()
	defer s.anim.Detach(owner)

	s.anim.On(animator.Key{Event: animator.EventTick, Owner: owner}, func(dt time.Duration, now int64) {
		frame := s.frame(sel, dt, now)
		select {
		case frames <- frame:
		default:
			// slow client; never block the animator
		}
	})

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// reading is required to notice disconnects
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case frame := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// frame collects the value at the current point of every selected attribute
func (s *Server) frame(sel map[string]string, dt time.Duration, now int64) Frame {
	f := Frame{Now: now, DTMs: dt.Milliseconds(), Values: make(map[string]float64)}
	for _, id := range s.reg.Find(sel) {
		e, err := s.reg.Lookup(id)
		if err != nil {
			continue
		}
		if sample, ok := e.Index.Floor(now); ok {
			f.Values[id.String()] = sample.Value
		}
	}
	return f
}
