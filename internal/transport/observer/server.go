package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sandfall.io/internal/observerproto"
)

// Server exposes finished runs to external renderers: a JSON bootstrap listing
// and a websocket that replays one run grain by grain.
type Server struct {
	runs RunSource
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(runs RunSource, logger *log.Logger) *Server {
	return &Server{
		runs: runs,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see isLoopbackRemote
		},
	}
}

// Register mounts the observer endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Runs:            s.runs.Runs(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		readTimeout := 5 * time.Second
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			readTimeout = 60 * time.Second

			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				s.writeError(conn, observerproto.ErrBadRequest, "expected SUBSCRIBE")
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
				return
			}
			rec, ok := s.runs.Run(strings.TrimSpace(sub.RunID))
			if !ok {
				s.writeError(conn, observerproto.ErrRunNotFound, "unknown run "+sub.RunID)
				continue
			}
			if err := s.stream(conn, rec, sub); err != nil {
				if s.log != nil {
					s.log.Printf("observer: stream %s: %v", rec.Info.RunID, err)
				}
				return
			}
		}
	}
}

func (s *Server) stream(conn *websocket.Conn, rec *Recording, sub observerproto.SubscribeMsg) error {
	gm := observerproto.GridMsg{
		Type:            observerproto.TypeGrid,
		ProtocolVersion: observerproto.Version,
		Run:             rec.Info,
		Rocks:           rec.Rocks,
		Raster:          rec.Raster,
	}
	if sub.NoTerrain {
		gm.Rocks = [][2]int{}
		gm.Raster = nil
	}
	if err := writeJSON(conn, gm); err != nil {
		return err
	}
	for _, g := range rec.Grains {
		if g.Seq < sub.FromSeq {
			continue
		}
		if err := writeJSON(conn, g); err != nil {
			return err
		}
	}
	return writeJSON(conn, observerproto.DoneMsg{
		Type:            observerproto.TypeDone,
		ProtocolVersion: observerproto.Version,
		RunID:           rec.Info.RunID,
		Grains:          rec.Info.Grains,
		Digest:          rec.Info.Digest,
	})
}

func (s *Server) writeError(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, observerproto.ErrorMsg{
		Type:            observerproto.TypeError,
		ProtocolVersion: observerproto.Version,
		Code:            code,
		Message:         msg,
	})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
