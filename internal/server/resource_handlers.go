package server

import (
	"quad/internal/service"

	"github.com/gofiber/fiber/v2"
)

type resourceRequest struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (r resourceRequest) input() service.ResourceInput {
	return service.ResourceInput{
		Category:    r.Category,
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
	}
}

// GetResources handles GET /api/resources?category=
// @Summary List resources
// @Description Pinned resources come first
// @Tags resources
// @Param category query string false "Category slug"
// @Success 200 {array} models.Resource
// @Router /resources [get]
func (s *Server) GetResources(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	list, err := s.resources.List(c.UserContext(), c.Query("category"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (s *Server) GetResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.resources.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) CreateResource(c *fiber.Ctx) error {
	var req resourceRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	res, err := s.resources.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) UpdateResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req resourceRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	res, err := s.resources.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) DeleteResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.resources.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Resource deleted"})
}

// PinResource handles POST /api/resources/:id/pin with optional {"pinned": false}. Admin only.
func (s *Server) PinResource(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	pinned, err := toggleFlag(c, "pinned")
	if err != nil {
		return nil
	}
	res, err := s.resources.SetPinned(c.UserContext(), currentUserID(c), id, pinned)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
