package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNetwork handles GET /api/network
// @Summary List connected users
// @Tags network
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.User
// @Router /network [get]
func (s *Server) GetNetwork(c *fiber.Ctx) error {
	users, err := s.network.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetNetworkIDs handles GET /api/network/ids
func (s *Server) GetNetworkIDs(c *fiber.Ctx) error {
	ids, err := s.network.IDs(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if ids == nil {
		ids = []uint{}
	}
	return c.JSON(fiber.Map{"ids": ids})
}

// SendNetworkRequest handles POST /api/network/requests/:userId
// @Summary Send a network request
// @Tags network
// @Security BearerAuth
// @Param userId path int true "Addressee ID"
// @Success 201 {object} models.Connection
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /network/requests/{userId} [post]
func (s *Server) SendNetworkRequest(c *fiber.Ctx) error {
	to, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	conn, err := s.network.SendRequest(c.UserContext(), currentUserID(c), to)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conn)
}

// GetPendingRequests handles GET /api/network/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	reqs, err := s.network.Pending(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// GetSentRequests handles GET /api/network/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	reqs, err := s.network.Sent(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

// AcceptNetworkRequest handles POST /api/network/requests/:requestId/accept
func (s *Server) AcceptNetworkRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	conn, err := s.network.Accept(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conn)
}

// RejectNetworkRequest handles POST /api/network/requests/:requestId/reject
func (s *Server) RejectNetworkRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}
	if _, err := s.network.Reject(c.UserContext(), currentUserID(c), requestID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Request rejected"})
}

// GetNetworkStatus handles GET /api/network/status/:userId
func (s *Server) GetNetworkStatus(c *fiber.Ctx) error {
	other, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	status, conn, err := s.network.Status(c.UserContext(), currentUserID(c), other)
	if err != nil {
		return respondError(c, err)
	}
	resp := fiber.Map{"status": status}
	if conn != nil {
		resp["request_id"] = conn.ID
	}
	return c.JSON(resp)
}

// RemoveConnection handles DELETE /api/network/:userId
func (s *Server) RemoveConnection(c *fiber.Ctx) error {
	other, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	if err := s.network.Remove(c.UserContext(), currentUserID(c), other); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Connection removed"})
}

// GetRecommendations handles GET /api/network/recommendations
// @Summary Suggested connections
// @Description Ranks users by shared university, major, year, interests, bio terms and mutual connections
// @Tags network
// @Security BearerAuth
// @Produce json
// @Success 200 {array} service.RecommendedUser
// @Router /network/recommendations [get]
func (s *Server) GetRecommendations(c *fiber.Ctx) error {
	recs, err := s.recommendations.ForUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(recs)
}
