package server

import (
	"github.com/gofiber/fiber/v2"
)

type hideReplyRequest struct {
	Hidden *bool `json:"hidden" validate:"required"`
}

// TogglePin handles POST /api/topics/:id/pin
// @Summary Pin or unpin a topic
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Success 200 {object} models.Topic
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id}/pin [post]
func (s *Server) TogglePin(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	topic, err := s.moderation.TogglePin(c.UserContext(), callerOf(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(topic)
}

// ToggleLock handles POST /api/topics/:id/lock
// @Summary Lock or unlock a topic
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Success 200 {object} models.Topic
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id}/lock [post]
func (s *Server) ToggleLock(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	topic, err := s.moderation.ToggleLock(c.UserContext(), callerOf(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(topic)
}

// HideReply handles POST /api/replies/:id/hide
// @Summary Hide or unhide a reply
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Reply ID"
// @Param request body hideReplyRequest true "Hidden flag"
// @Success 200 {object} models.Reply
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /replies/{id}/hide [post]
func (s *Server) HideReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req hideReplyRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	reply, err := s.moderation.SetReplyHidden(c.UserContext(), callerOf(c), id, *req.Hidden)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reply)
}
