package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/listenroom/internal/repository/connection"
)

type repo struct {
	observers map[string]connection.Observer
	byRoom    map[string]map[string]struct{}
	logger    *slog.Logger
	mu        sync.RWMutex
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		observers: make(map[string]connection.Observer),
		byRoom:    make(map[string]map[string]struct{}),
		logger:    logger,
	}
}

func (r *repo) Add(o connection.Observer) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "observer_id", o.Id, "room_id", o.RoomId, "member_id", o.MemberId)
	if _, ok := r.observers[o.Id]; ok {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.observers[o.Id] = o
	room, ok := r.byRoom[o.RoomId]
	if !ok {
		room = make(map[string]struct{})
		r.byRoom[o.RoomId] = room
	}
	room[o.Id] = struct{}{}

	return nil
}

func (r *repo) remove(observerId string) (connection.Observer, bool) {
	o, ok := r.observers[observerId]
	if !ok {
		return connection.Observer{}, false
	}

	delete(r.observers, observerId)
	if room, ok := r.byRoom[o.RoomId]; ok {
		delete(room, observerId)
		if len(room) == 0 {
			delete(r.byRoom, o.RoomId)
		}
	}

	return o, true
}

func (r *repo) Remove(observerId string) (connection.Observer, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "observer_id", observerId)
	o, ok := r.remove(observerId)
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.Observer{}, connection.ErrNotFound
	}

	return o, nil
}

// RemoveByRoom detaches every observer of roomId and returns them.
func (r *repo) RemoveByRoom(roomId string) []connection.Observer {
	funcName := "connection.inmemory.RemoveByRoom"
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]connection.Observer, 0, len(r.byRoom[roomId]))
	for id := range r.byRoom[roomId] {
		if o, ok := r.remove(id); ok {
			removed = append(removed, o)
		}
	}

	r.logger.Debug(funcName, "room_id", roomId, "removed", len(removed))
	return removed
}

func (r *repo) ListByRoom(roomId string) []connection.Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]connection.Observer, 0, len(r.byRoom[roomId]))
	for id := range r.byRoom[roomId] {
		list = append(list, r.observers[id])
	}

	return list
}

func (r *repo) CountByRoom(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byRoom[roomId])
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.observers)
}
