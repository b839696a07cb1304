package handler

import (
	"Solace/internal/api/dto"
	"Solace/internal/pkg/consts"
	"Solace/internal/pkg/response"
	"Solace/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	chatService service.ChatService
}

func NewIMHandler(chatService service.ChatService) *IMHandler {
	return &IMHandler{chatService: chatService}
}

// MarkAsRead 标记已读接口，读者取自 Token
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	var req dto.MarkAsReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	identityID := c.GetString(consts.CtxIdentityID)
	if err := s.chatService.MarkAsRead(c.Request.Context(), req.ConversationID, identityID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetChatHistory 获取历史消息，before 为上一页最旧消息的 ID
func (s *IMHandler) GetChatHistory(c *gin.Context) {
	convID := c.Query("conversationId")
	before := c.Query("before")
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))

	res, err := s.chatService.GetHistory(c.Request.Context(), c.GetString(consts.CtxIdentityID), convID, before, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversationList 获取会话列表
func (s *IMHandler) GetConversationList(c *gin.Context) {
	res, err := s.chatService.ListConversations(c.Request.Context(), c.GetString(consts.CtxIdentityID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
