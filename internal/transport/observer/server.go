package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Abhipanda4/Agent-Based-Modelling/internal/observerproto"
	"github.com/Abhipanda4/Agent-Based-Modelling/internal/sim/world"
)

const maxEveryTicks = 1000

// Timeouts bound an observer session. Zero fields take the defaults.
type Timeouts struct {
	Handshake time.Duration // until the first SUBSCRIBE
	Idle      time.Duration // read deadline, extended by any message or pong
	Write     time.Duration // per frame or ping
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Handshake <= 0 {
		t.Handshake = 5 * time.Second
	}
	if t.Idle <= 0 {
		t.Idle = 60 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 5 * time.Second
	}
	return t
}

type Server struct {
	world *world.World
	log   *slog.Logger

	// AllowRemote disables the loopback-only guard.
	AllowRemote bool
	Timeouts    Timeouts

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		world: w,
		log:   logger.With("component", "observer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		c := s.world.Center()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				Width:           cfg.Width,
				Height:          cfg.Height,
				Torus:           cfg.Torus,
				Seed:            cfg.Seed,
				TickRateHz:      cfg.TickRateHz,
				Population:      cfg.Population,
				Coop:            cfg.Coop,
				EnergyShareProb: cfg.EnergyShareProb,
				Center:          [2]int{c.X, c.Y},
				BaseRadius:      cfg.Tuning.PopSpread,
			},
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serveConn(r.Context(), conn)
	}
}

// serveConn runs one observer session: a SUBSCRIBE handshake, then frames
// out and SUBSCRIBE updates in until either side stops.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	t := s.Timeouts.withDefaults()

	_ = conn.SetReadDeadline(time.Now().Add(t.Handshake))
	sub, err := readSubscribe(conn)
	if err != nil {
		closeConn(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	sid := fmt.Sprintf("O%d", s.nextID.Add(1))
	out := make(chan []byte, 8)
	select {
	case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, Out: out, EveryTicks: sub.EveryTicks, Resources: sub.Resources}:
	default:
		closeConn(conn, websocket.CloseTryAgainLater, "server busy")
		return
	}
	log := s.log.With("session", sid)
	log.Info("observer joined", "every_ticks", sub.EveryTicks, "resources", sub.Resources)
	defer func() {
		select {
		case s.world.ObserverLeave() <- sid:
		default:
			// World loop is gone.
		}
		log.Info("observer left")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.Idle))
	})

	writeDone := make(chan error, 1)
	go func() { writeDone <- writeLoop(ctx, conn, out, t) }()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readLoop(conn, sid, t)
	}()

	var werr error
	select {
	case <-readDone:
		cancel()
		select {
		case werr = <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	case werr = <-writeDone:
	}
	if werr != nil && !errors.Is(werr, context.Canceled) {
		log.Debug("observer write stopped", "err", werr)
	}
	closeConn(conn, websocket.CloseNormalClosure, "bye")
}

// writeLoop sends frames until out is closed by the world, ctx ends or a
// write fails. Pings keep passive observers inside the idle deadline.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte, t Timeouts) error {
	ping := time.NewTicker(t.Idle / 2)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-out:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(t.Write))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.Write)); err != nil {
				return err
			}
		}
	}
}

// readLoop forwards SUBSCRIBE updates to the world. Malformed messages are
// skipped; transport errors end the session.
func (s *Server) readLoop(conn *websocket.Conn, sid string, t Timeouts) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(t.Idle))
		sub, err := readSubscribe(conn)
		var bad errBadSubscribe
		if errors.As(err, &bad) {
			continue
		}
		if err != nil {
			return
		}
		select {
		case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{SessionID: sid, EveryTicks: sub.EveryTicks, Resources: sub.Resources}:
		default:
			// Dropped under load; the client may resend.
		}
	}
}

func closeConn(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

type errBadSubscribe string

func (e errBadSubscribe) Error() string { return string(e) }

// readSubscribe reads one message and decodes it as a SUBSCRIBE. Transport
// errors are returned as-is; protocol errors as errBadSubscribe.
func readSubscribe(conn *websocket.Conn) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, errBadSubscribe("bad subscribe")
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, errBadSubscribe("expected SUBSCRIBE")
	}
	normalizeSubscribe(&sub)
	return sub, nil
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.EveryTicks <= 0 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > maxEveryTicks {
		sub.EveryTicks = maxEveryTicks
	}
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
