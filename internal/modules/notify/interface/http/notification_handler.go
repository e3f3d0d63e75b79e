package http

import (
	"net/http"

	"AccessOps/internal/modules/notify/application/service"
	"AccessOps/pkg/back"
	"AccessOps/pkg/ws"
	"AccessOps/pkg/xerr"
	"AccessOps/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type NotificationHandler struct {
	notifSvc  service.NotificationService
	publisher service.NotificationPublisher
	hub       *ws.Hub
}

func NewNotificationHandler(notifSvc service.NotificationService, publisher service.NotificationPublisher, hub *ws.Hub) *NotificationHandler {
	return &NotificationHandler{notifSvc: notifSvc, publisher: publisher, hub: hub}
}

type listNotificationsRequest struct {
	UserId string `json:"userId" binding:"required"`
	Limit  int    `json:"limit"`
}

func (h *NotificationHandler) List(c *gin.Context) {
	var req listNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	notifs, err := h.notifSvc.GetUserNotifications(c.Request.Context(), req.UserId, req.Limit)
	back.Result(c, notifs, err)
}

type markReadRequest struct {
	NotificationId string `json:"notificationId" binding:"required"`
	UserId         string `json:"userId" binding:"required"`
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	err := h.notifSvc.MarkRead(c.Request.Context(), req.NotificationId, req.UserId)
	back.Result(c, nil, err)
}

// PublisherStatus 运维诊断端点，永不报错
func (h *NotificationHandler) PublisherStatus(c *gin.Context) {
	back.Success(c, h.publisher.GetStatus(c.Request.Context()))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connect 建立实时通知的 WebSocket 连接
func (h *NotificationHandler) Connect(c *gin.Context) {
	userId := c.Query("user_id")
	if userId == "" {
		back.Error(c, xerr.BadRequest, "user_id is required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error("ws upgrade failed: " + err.Error())
		return
	}

	client := ws.NewClient(userId, conn)
	h.hub.Register(client)
	go client.WritePump()

	go func() {
		defer h.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
