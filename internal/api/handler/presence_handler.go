package handler

import (
	"Solace/internal/pkg/response"
	"Solace/internal/service"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presenceService service.PresenceService
}

func NewPresenceHandler(presenceService service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// GetPresence GET /presence/:kind/:id
func (s *PresenceHandler) GetPresence(c *gin.Context) {
	res, err := s.presenceService.GetPresence(c.Request.Context(), c.Param("id"), c.Param("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
