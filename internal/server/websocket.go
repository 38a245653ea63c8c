package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"loan-predictor/internal/schema"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 5 * time.Second
)

// FormMessage is one client update of the interactive form. Fields are
// merged into the connection's form state; Reset clears it first.
type FormMessage struct {
	Fields map[string]any `json:"fields"`
	Reset  bool           `json:"reset,omitempty"`
}

// FormReply answers every FormMessage with either the field errors of the
// current state or a prediction.
type FormReply struct {
	Type     string       `json:"type"` // "errors", "result" or "error"
	Label    string       `json:"label,omitempty"`
	Approved bool         `json:"approved,omitempty"`
	Fields   []FieldError `json:"fields,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnectionsAdd(1)
		defer s.metrics.WSConnectionsAdd(-1)
	}

	conn.SetReadLimit(s.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go keepAlive(ctx, conn)

	log.Debug().Str("remote", r.RemoteAddr).Msg("form session opened")

	// One connection is one applicant; the state dies with it
	state := make(map[string]string, schema.Width)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("form session ended unexpectedly")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := s.formReply(ctx, state, data)
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Msg("failed to write form reply")
			return
		}
	}
}

func (s *Server) formReply(ctx context.Context, state map[string]string, data []byte) FormReply {
	var msg FormMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return FormReply{Type: "error", Error: "invalid message: " + err.Error()}
	}

	if msg.Reset {
		for k := range state {
			delete(state, k)
		}
	}

	update, err := formValues(msg.Fields)
	if err != nil {
		return errorsReply(err)
	}
	for k, v := range update {
		state[k] = v
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PredictTimeout)
	defer cancel()

	res, err := s.svc.PredictForm(pctx, state)
	if err != nil {
		return errorsReply(err)
	}
	return FormReply{Type: "result", Label: res.Label.String(), Approved: res.Approved}
}

func errorsReply(err error) FormReply {
	var fe schema.FieldErrors
	if errors.As(err, &fe) {
		return FormReply{Type: "errors", Fields: schemaFields(fe)}
	}
	log.Error().Err(err).Msg("form prediction failed")
	return FormReply{Type: "error", Error: errorMessage(err)}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
