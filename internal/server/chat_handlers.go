package server

import (
	"quad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations
// @Summary Start a conversation
// @Description A 1:1 conversation with the same user is returned instead of duplicated
// @Tags conversations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{participant_ids=[]int,name=string,is_group=bool} true "Conversation"
// @Success 201 {object} models.Conversation
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		ParticipantIDs []uint `json:"participant_ids"`
		Name           string `json:"name"`
		IsGroup        bool   `json:"is_group"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	conv, err := s.chat.CreateConversation(c.UserContext(), service.CreateConversationInput{
		UserID:         currentUserID(c),
		Name:           req.Name,
		IsGroup:        req.IsGroup,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

// GetConversations handles GET /api/conversations
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.chat.ListConversations(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(convs)
}

// GetConversation handles GET /api/conversations/:id
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	conv, err := s.chat.GetConversation(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Messages in a conversation
// @Description Returned in chronological order
// @Tags conversations
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	msgs, err := s.chat.GetMessages(c.UserContext(), id, currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /api/conversations/:id/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	msg, err := s.chat.SendMessage(c.UserContext(), service.SendMessageInput{
		UserID:         currentUserID(c),
		ConversationID: id,
		Content:        req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkConversationRead handles POST /api/conversations/:id/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.chat.MarkRead(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Conversation marked as read"})
}

// LeaveConversation handles DELETE /api/conversations/:id
func (s *Server) LeaveConversation(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.chat.LeaveConversation(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left conversation"})
}
