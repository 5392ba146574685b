package room

import (
	"encoding/json"

	"github.com/sharetube/listenroom/internal/repository/connection"
)

func (s *service) view(r *roomActor) StateView {
	return StateView{
		RoomId:  r.id,
		OwnerId: r.ownerId,
		State:   r.state.Snapshot(snapshotHistory),
	}
}

func (s *service) encode(frame Frame) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("failed to encode frame", "type", frame.Type, "error", err)
		return nil
	}
	return data
}

func (s *service) send(o connection.Observer, data []byte) {
	if err := o.Sender.Send(data); err != nil {
		s.metrics.DroppedFrames.Inc()
		s.logger.Debug("dropped frame", "room_id", o.RoomId, "observer_id", o.Id, "error", err)
	}
}

// broadcastState pushes the accepted state to every observer of the room. It
// never blocks on a slow observer.
func (s *service) broadcastState(r *roomActor) {
	data := s.encode(Frame{Type: FrameState, Payload: s.view(r)})
	if data == nil {
		return
	}

	s.metrics.Broadcasts.Inc()
	for _, o := range s.connRepo.ListByRoom(r.id) {
		s.send(o, data)
	}
}

func (s *service) broadcast(roomId string, frame Frame) {
	data := s.encode(frame)
	if data == nil {
		return
	}

	for _, o := range s.connRepo.ListByRoom(roomId) {
		s.send(o, data)
	}
}
