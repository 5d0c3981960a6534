package web

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-framestream/pkg/hub"
	"github.com/teslashibe/go-framestream/pkg/protocol"
)

// handleStatus returns the session snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no session",
		})
	}
	return c.JSON(protocol.StatsDataFrom(s.status()))
}

// handleHealth reports liveness and the session state
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.status != nil {
		resp["state"] = s.status().State.String()
	}
	return c.JSON(resp)
}

// handleStatusWS streams status events. New clients get a stats snapshot
// first.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var greeting []hub.Message
	if s.status != nil {
		msg, err := protocol.NewStatsMessage(s.status())
		if err == nil {
			if data, err := msg.Bytes(); err == nil {
				greeting = append(greeting, hub.NewJSONMessage(data))
			}
		}
	}

	client := hub.NewClient(s.statusHub, c, greeting...)
	if client == nil {
		return
	}
	client.Run()
}
