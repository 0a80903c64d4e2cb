package server

import (
	"quad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetForums handles GET /api/forums
// @Summary List forums
// @Tags forums
// @Produce json
// @Success 200 {array} models.Forum
// @Router /forums [get]
func (s *Server) GetForums(c *fiber.Ctx) error {
	forums, err := s.forums.ListForums(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(forums)
}

// GetForum handles GET /api/forums/:category
// @Summary Forum with a page of posts
// @Description Pinned posts come first, then newest
// @Tags forums
// @Produce json
// @Param category path string true "Forum slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} service.ForumPage
// @Failure 404 {object} models.ErrorResponse
// @Router /forums/{category} [get]
func (s *Server) GetForum(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	forum, err := s.forums.GetForum(c.UserContext(), c.Params("category"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(forum)
}

// CreatePost handles POST /api/forums/:category/posts
// @Summary Create a post
// @Tags forums
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param category path string true "Forum slug"
// @Param request body object{title=string,body=string} true "Post"
// @Success 201 {object} models.Post
// @Router /forums/{category}/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	post, err := s.forums.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:    currentUserID(c),
		ForumSlug: c.Params("category"),
		Title:     req.Title,
		Body:      req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.forums.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title *string `json:"title"`
		Body  *string `json:"body"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	post, err := s.forums.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID: currentUserID(c),
		PostID: id,
		Title:  req.Title,
		Body:   req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.forums.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// toggleFlag reads an optional {"<name>": bool} body; absent means true.
func toggleFlag(c *fiber.Ctx, name string) (bool, error) {
	if len(c.Body()) == 0 {
		return true, nil
	}
	var req map[string]*bool
	if err := bindJSON(c, &req); err != nil {
		return false, err
	}
	if v := req[name]; v != nil {
		return *v, nil
	}
	return true, nil
}

// PinPost handles POST /api/posts/:id/pin with optional {"pinned": false}. Admin only.
func (s *Server) PinPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	pinned, err := toggleFlag(c, "pinned")
	if err != nil {
		return nil
	}
	post, err := s.forums.SetPinned(c.UserContext(), currentUserID(c), id, pinned)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// LockPost handles POST /api/posts/:id/lock with optional {"locked": false}. Admin only.
func (s *Server) LockPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	locked, err := toggleFlag(c, "locked")
	if err != nil {
		return nil
	}
	post, err := s.forums.SetLocked(c.UserContext(), currentUserID(c), id, locked)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	comments, err := s.forums.ListComments(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

type commentRequest struct {
	Body string `json:"body"`
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags forums
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse "Post is locked"
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	comment, err := s.forums.CreateComment(c.UserContext(), currentUserID(c), id, req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	comment, err := s.forums.UpdateComment(c.UserContext(), currentUserID(c), id, req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.forums.DeleteComment(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}
