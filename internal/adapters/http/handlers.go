package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/domain"
)

// RestController exposes the thin HTTP collaborator surface over the
// coordinator. Real-time events still flow over the websocket; these exist
// for clients that manage the queue out of band.
type RestController struct {
	Coord *app.Coordinator
}

type joinQueueRequest struct {
	Game  string `json:"game" binding:"required"`
	Video bool   `json:"video"`
}

func (ctl *RestController) JoinQueue(c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid game"})
		return
	}
	if err := ctl.Coord.JoinQueue(uid, domain.GameID(req.Game), req.Video); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued", "game": req.Game})
}

func (ctl *RestController) LeaveQueue(c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	if err := ctl.Coord.LeaveQueue(uid); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (ctl *RestController) CurrentConnection(c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	room, ok := ctl.Coord.CurrentRoom(uid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active connection"})
		return
	}
	partner, _ := room.Other(uid)
	c.JSON(http.StatusOK, gin.H{
		"room":    room.ID,
		"game":    room.Game,
		"state":   room.State.String(),
		"partner": partner,
	})
}

func (ctl *RestController) DisconnectRoom(c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	roomID := domain.RoomID(c.Param("id"))
	if err := ctl.Coord.DisconnectRoom(roomID, uid); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (ctl *RestController) SendMessage(c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	roomID := domain.RoomID(c.Param("id"))
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text"})
		return
	}
	if err := ctl.Coord.SendChat(roomID, uid, req.Text); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotInQueue), errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomEnded):
		return http.StatusGone
	case errors.Is(err, domain.ErrNotAParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrGameIDEmpty),
		errors.Is(err, domain.ErrGameIDTooLong),
		errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
