package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrSettingsNotFound  = errors.New("settings not found")
	ErrSnapshotNotFound  = errors.New("queue snapshot not found")
	ErrVideoNotFound     = errors.New("video not found")
	ErrSearchNotFound    = errors.New("search result not found")
	ErrBanNotFound       = errors.New("banned song not found")
)
