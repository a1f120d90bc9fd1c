package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createTopicRequest struct {
	Title    string   `json:"title" validate:"required,max=300"`
	Content  string   `json:"content" validate:"max=50000"`
	Category string   `json:"category" validate:"required"`
	Tags     []string `json:"tags" validate:"omitempty,max=10,dive,forumtag"`
}

type updateTopicRequest struct {
	Title      *string   `json:"title" validate:"omitempty,max=300"`
	Content    *string   `json:"content" validate:"omitempty,max=50000"`
	Category   *string   `json:"category"`
	Tags       *[]string `json:"tags"`
	Status     *string   `json:"status" validate:"omitempty,oneof=open closed pinned resolved"`
	IsResolved *bool     `json:"is_resolved"`
}

func (r updateTopicRequest) patch() service.TopicPatch {
	p := service.TopicPatch{
		Title:      r.Title,
		Content:    r.Content,
		Tags:       r.Tags,
		IsResolved: r.IsResolved,
	}
	if r.Category != nil {
		category := models.Category(*r.Category)
		p.Category = &category
	}
	if r.Status != nil {
		status := models.TopicStatus(*r.Status)
		p.Status = &status
	}
	return p
}

// ListTopics handles GET /api/topics
// @Summary List topics
// @Description Filter, sort and page topics. Pinned topics always come first.
// @Tags topics
// @Produce json
// @Param category query string false "Category or all"
// @Param search query string false "Substring of title/content or exact tag"
// @Param sortBy query string false "recent, popular, replies or views"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Topic
// @Failure 400 {object} models.ErrorResponse
// @Router /topics [get]
func (s *Server) ListTopics(c *fiber.Ctx) error {
	sortBy := c.Query("sortBy")
	if sortBy == "" {
		sortBy = c.Query("sort_by")
	}
	filter := service.TopicFilter{
		Category: models.Category(c.Query("category")),
		Search:   c.Query("search"),
		SortBy:   sortBy,
		Limit:    c.QueryInt("limit", 0),
		Offset:   c.QueryInt("offset", 0),
	}

	topics, err := s.topics.ListTopics(c.UserContext(), filter, callerOf(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(topics)
}

// GetTopic handles GET /api/topics/:id
// @Summary Get topic
// @Description Returns the topic with its reply tree and records a view.
// @Tags topics
// @Produce json
// @Param id path int true "Topic ID"
// @Success 200 {object} models.TopicDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id} [get]
func (s *Server) GetTopic(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.topics.GetTopicDetail(c.UserContext(), id, callerOf(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// CreateTopic handles POST /api/topics
// @Summary Create topic
// @Tags topics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createTopicRequest true "Topic"
// @Success 201 {object} models.Topic
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /topics [post]
func (s *Server) CreateTopic(c *fiber.Ctx) error {
	var req createTopicRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	topic, err := s.topics.CreateTopic(c.UserContext(), callerOf(c), service.CreateTopicInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: models.Category(req.Category),
		Tags:     req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(topic)
}

// UpdateTopic handles PATCH /api/topics/:id
// @Summary Update topic
// @Description Author or moderator only. Omitted fields are left unchanged.
// @Tags topics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Param request body updateTopicRequest true "Fields to change"
// @Success 200 {object} models.Topic
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id} [patch]
func (s *Server) UpdateTopic(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updateTopicRequest
	if err := parseBody(c, &req, false); err != nil {
		return nil
	}

	topic, err := s.topics.UpdateTopic(c.UserContext(), callerOf(c), id, req.patch())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(topic)
}

// DeleteTopic handles DELETE /api/topics/:id
// @Summary Delete topic
// @Description Author or moderator only. Replies are kept.
// @Tags topics
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{id} [delete]
func (s *Server) DeleteTopic(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.topics.DeleteTopic(c.UserContext(), callerOf(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
