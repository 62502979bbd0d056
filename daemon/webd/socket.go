package webd

import (
	"encoding/json"
	"github.com/olahol/melody"
	"github.com/rotblauer/geopulse/controller"
)

type websocketAction string

var websocketActionState websocketAction = "state"

type stateMessage struct {
	Action websocketAction          `json:"action"`
	Phase  controller.Phase         `json:"phase"`
	Status string                   `json:"status"`
	State  controller.TrackingState `json:"state"`
}

func newStateMessage(state controller.TrackingState) stateMessage {
	return stateMessage{
		Action: websocketActionState,
		Phase:  state.Phase(),
		Status: state.StatusMessage(),
		State:  state,
	}
}

// initMelody sets up the websocket handler.
// Every client gets the current state on connect, then every new snapshot.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()
	// melody marks its hub open asynchronously.
	s.wsOpen.Store(true)

	s.melodyInstance.HandleConnect(func(session *melody.Session) {
		s.logger.Info("Websocket connected", "remote", session.Request.RemoteAddr)
		b, err := json.Marshal(newStateMessage(s.controller.State()))
		if err != nil {
			s.logger.Error("Failed to marshal state", "error", err)
			return
		}
		if err := session.Write(b); err != nil {
			s.logger.Warn("Failed to write state", "error", err)
		}
	})

	// Clients don't talk back. Log and drop.
	s.melodyInstance.HandleMessage(func(session *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", session.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(session *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", session.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(session *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", session.Request.RemoteAddr, "error", e)
	})

	states := make(chan controller.TrackingState)
	sub := s.feedState.Subscribe(states)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case state := <-states:
				b, err := json.Marshal(newStateMessage(state))
				if err != nil {
					s.logger.Error("Failed to marshal state", "error", err)
					continue
				}
				if !s.wsOpen.Load() {
					return
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					s.logger.Warn("Failed to broadcast state", "error", err)
				}
			case err := <-sub.Err():
				if err != nil {
					s.logger.Error("State feed subscription failed", "error", err)
				}
				return
			}
		}
	}()
}
