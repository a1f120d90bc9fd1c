package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createReplyRequest struct {
	Content       string `json:"content" validate:"required,max=10000"`
	ParentReplyID *uint  `json:"parent_reply_id" validate:"omitempty,gt=0"`
}

type updateReplyRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

type bestAnswerRequest struct {
	TopicID uint `json:"topic_id"`
}

// ListReplies handles GET /api/topics/:id/replies
// @Summary List replies
// @Description Two-level reply tree. Hidden replies are included only for moderators who ask.
// @Tags replies
// @Produce json
// @Param id path int true "Topic ID"
// @Param include_hidden query bool false "Include hidden replies (moderators)"
// @Success 200 {array} models.ReplyNode
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id}/replies [get]
func (s *Server) ListReplies(c *fiber.Ctx) error {
	topicID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	nodes, err := s.replies.ListReplies(c.UserContext(), topicID, callerOf(c), c.QueryBool("include_hidden"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(nodes)
}

// CreateReply handles POST /api/topics/:id/replies
// @Summary Reply to a topic
// @Tags replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Param request body createReplyRequest true "Reply"
// @Success 201 {object} models.Reply
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 423 {object} models.ErrorResponse
// @Router /topics/{id}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	topicID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req createReplyRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	reply, err := s.replies.CreateReply(c.UserContext(), callerOf(c), service.CreateReplyInput{
		TopicID:       topicID,
		Content:       req.Content,
		ParentReplyID: req.ParentReplyID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// UpdateReply handles PATCH /api/replies/:id
// @Summary Edit reply
// @Tags replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Reply ID"
// @Param request body updateReplyRequest true "New content"
// @Success 200 {object} models.Reply
// @Failure 403 {object} models.ErrorResponse
// @Router /replies/{id} [patch]
func (s *Server) UpdateReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateReplyRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	reply, err := s.replies.UpdateReply(c.UserContext(), callerOf(c), id, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reply)
}

// DeleteReply handles DELETE /api/replies/:id
// @Summary Delete reply
// @Tags replies
// @Security BearerAuth
// @Param id path int true "Reply ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /replies/{id} [delete]
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.replies.DeleteReply(c.UserContext(), callerOf(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkBestAnswer handles POST /api/replies/:id/best-answer
// @Summary Mark best answer
// @Description Topic author or moderator. Other best answers are kept.
// @Tags replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Reply ID"
// @Param request body bestAnswerRequest false "Expected topic"
// @Success 200 {object} models.Reply
// @Failure 403 {object} models.ErrorResponse
// @Router /replies/{id}/best-answer [post]
func (s *Server) MarkBestAnswer(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req bestAnswerRequest
	if err := parseBody(c, &req, true); err != nil {
		return nil
	}

	reply, err := s.replies.MarkBestAnswer(c.UserContext(), callerOf(c), id, req.TopicID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reply)
}
