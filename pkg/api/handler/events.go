package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stevelan1995/mailpilot/pkg/core/events"
)

// EventsHandler 执行事件实时推送处理器
// 订阅事件总线并通过WebSocket转发给客户端
type EventsHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

// NewEventsHandler 创建EventsHandler
func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream 事件流WebSocket端点
// GET /api/v1/events/ws
// 可选query参数execution_id只推送单个执行的事件
func (h *EventsHandler) Stream(c *gin.Context) {
	executionID := c.Query("execution_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	ch, err := h.bus.SubscribeEvents(ctx)
	if err != nil {
		log.Printf("❌ 订阅执行事件失败: %v", err)
		return
	}

	// 读循环只用于感知客户端断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for ev := range ch {
		if executionID != "" && ev.ExecutionID != executionID {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
