package server

import (
	"encoding/json"
	"log/slog"

	"agora/internal/featureflags"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const topicFilterLocal = "topicID"

// ChangeFeedUpgrade checks the feature flag and topic filter before the
// websocket upgrade. Run after WebSocketAuthRequired.
func (s *Server) ChangeFeedUpgrade(c *fiber.Ctx) error {
	caller := callerOf(c)
	if !s.featureFlags.Enabled(featureflags.ChangeFeed, caller.UserID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("feature", featureflags.ChangeFeed))
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	topicID := c.QueryInt("topic_id", 0)
	if topicID < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid topic ID"))
	}
	c.Locals(topicFilterLocal, uint(topicID))
	return c.Next()
}

// ChangeFeedHandler handles GET /api/ws
// @Summary Change feed
// @Description Websocket stream of forum change events, optionally limited to one topic.
// @Tags realtime
// @Param token query string true "Bearer token"
// @Param topic_id query int false "Only events of this topic"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) ChangeFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.Close()
			return
		}
		topicID, _ := conn.Locals(topicFilterLocal).(uint)

		client, err := s.hub.Register(userID, topicID, conn)
		if err != nil {
			s.logger.Warn("change feed registration refused",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()),
			)
			msg, _ := json.Marshal(models.ErrorResponse{Error: err.Error(), Code: "CONNECTION_REFUSED"})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
