package controller

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/listenroom/internal/repository/room"
	roomService "github.com/sharetube/listenroom/internal/service/room"
	"github.com/sharetube/listenroom/pkg/rest"
	"github.com/sharetube/listenroom/pkg/validator"
)

const bearerPrefix = "Bearer "

// memberIdFromRequest returns the member id of a valid bearer token.
func (c controller) memberIdFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", roomService.ErrUnauthenticated
	}

	claims, err := c.roomService.ParseToken(strings.TrimPrefix(header, bearerPrefix))
	if err != nil {
		return "", err
	}

	return claims.MemberId, nil
}

func (c controller) roomIdParam(r *http.Request) (string, error) {
	roomId := chi.URLParam(r, "room-id")
	if verr, ok := c.validate.Var("room-id", roomId, "required,max=64,printascii"); !ok {
		return "", &inputError{errors: []validator.ValidationError{verr}}
	}
	return roomId, nil
}

type issueTokenRequest struct {
	Username string `json:"username" validate:"required,max=32"`
}

type issueTokenResponse struct {
	AuthToken string `json:"auth_token"`
	MemberId  string `json:"member_id"`
}

func (c controller) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.validateInput(req); err != nil {
		c.writeError(w, r, err)
		return
	}

	resp, err := c.roomService.IssueToken(&roomService.IssueTokenParams{Username: req.Username})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": issueTokenResponse{
		AuthToken: resp.AuthToken,
		MemberId:  resp.MemberId,
	}})
}

type createRoomRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	Password    string `json:"password" validate:"max=64"`
	Description string `json:"description" validate:"max=256"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type createRoomResponse struct {
	RoomId string `json:"room_id"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	memberId, err := c.memberIdFromRequest(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.validateInput(req); err != nil {
		c.writeError(w, r, err)
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &roomService.CreateRoomParams{
		SenderId:    memberId,
		Name:        req.Name,
		Visibility:  room.Visibility(req.Visibility),
		Password:    req.Password,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{RoomId: resp.RoomId}})
}

func (c controller) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.roomService.ListRooms(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId, err := c.roomIdParam(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	info, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": info})
}

type updateRoomRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=64"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
	Password    *string `json:"password" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=256"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

func (c controller) updateRoom(w http.ResponseWriter, r *http.Request) {
	roomId, err := c.roomIdParam(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	memberId, err := c.memberIdFromRequest(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	var req updateRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.validateInput(req); err != nil {
		c.writeError(w, r, err)
		return
	}

	var visibility *room.Visibility
	if req.Visibility != nil {
		v := room.Visibility(*req.Visibility)
		visibility = &v
	}

	info, err := c.roomService.UpdateRoom(r.Context(), &roomService.UpdateRoomParams{
		RoomId:      roomId,
		SenderId:    memberId,
		Name:        req.Name,
		Visibility:  visibility,
		Password:    req.Password,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": info})
}
