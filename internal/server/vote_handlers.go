package server

import (
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

type voteRequest struct {
	TopicID  *uint  `json:"topic_id" validate:"required_without=ReplyID,excluded_with=ReplyID"`
	ReplyID  *uint  `json:"reply_id" validate:"required_without=TopicID"`
	VoteType string `json:"vote_type" validate:"required,oneof=up down"`
}

type removeVoteRequest struct {
	TopicID *uint `json:"topic_id" validate:"required_without=ReplyID,excluded_with=ReplyID"`
	ReplyID *uint `json:"reply_id" validate:"required_without=TopicID"`
}

// CastVote handles POST /api/votes
// @Summary Vote on a topic or reply
// @Description Voting the same way twice removes the vote; the opposite way flips it.
// @Tags votes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body voteRequest true "Vote"
// @Success 200 {object} models.VoteState
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /votes [post]
func (s *Server) CastVote(c *fiber.Ctx) error {
	var req voteRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	target := models.VoteTarget{TopicID: req.TopicID, ReplyID: req.ReplyID}
	state, err := s.votes.CastVote(c.UserContext(), callerOf(c).UserID, target, models.VoteType(req.VoteType))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// RemoveVote handles DELETE /api/votes
// @Summary Remove a vote
// @Tags votes
// @Accept json
// @Security BearerAuth
// @Param request body removeVoteRequest true "Target"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /votes [delete]
func (s *Server) RemoveVote(c *fiber.Ctx) error {
	var req removeVoteRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	target := models.VoteTarget{TopicID: req.TopicID, ReplyID: req.ReplyID}
	if _, err := s.votes.RemoveVote(c.UserContext(), callerOf(c).UserID, target); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
