package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"estatenexy/dispatcher"
	"estatenexy/models"
)

type EventsController struct {
	Hub    *dispatcher.Hub
	Logger *logrus.Entry
}

func NewEventsController(hub *dispatcher.Hub, logger *logrus.Entry) *EventsController {
	return &EventsController{Hub: hub, Logger: logger}
}

// StreamEvents pushes the tenant's live conversation feed over a
// websocket. One JSON object per completed turn.
func (ec *EventsController) StreamEvents() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		tenant, ok := conn.Locals("tenant").(*models.Tenant)
		if !ok {
			conn.Close()
			return
		}

		events, cancel := ec.Hub.Subscribe()
		defer cancel()

		// Drain reads so close frames are noticed.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.TenantID != tenant.ID {
					continue
				}
				if err := conn.WriteJSON(ev); err != nil {
					ec.Logger.WithError(err).Debug("websocket write failed, dropping subscriber")
					return
				}
			case <-closed:
				return
			}
		}
	})
}
