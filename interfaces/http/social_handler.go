package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"social-gateway/domain/dto"
	"social-gateway/infrastructure/logger"
	"social-gateway/usecase"
)

const (
	ErrorUnmarshal = "Error while unmarshal"
)

type ISocialHandler interface {
	Post(c *gin.Context)
	Account(c *gin.Context)
}

// SocialHandler serves the authenticated platform operations. It stays thin;
// the usecases return ready-to-write envelopes.
type SocialHandler struct {
	usecases map[string]usecase.ISocialUsecase
}

func NewSocialHandler(usecases map[string]usecase.ISocialUsecase) ISocialHandler {
	return &SocialHandler{usecases: usecases}
}

func (h *SocialHandler) lookup(c *gin.Context) (usecase.ISocialUsecase, bool) {
	platform := c.Param("platform")
	u, ok := h.usecases[platform]
	if !ok {
		c.JSON(http.StatusNotFound, dto.Res{
			Status:   dto.StatusError,
			Code:     http.StatusNotFound,
			Message:  "unknown platform",
			Platform: platform,
		})
		return nil, false
	}
	return u, true
}

func (h *SocialHandler) Post(c *gin.Context) {
	u, ok := h.lookup(c)
	if !ok {
		return
	}
	var req dto.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithField("error", err).Error(ErrorUnmarshal)
		c.JSON(http.StatusBadRequest, dto.Res{
			Status:   dto.StatusError,
			Code:     http.StatusBadRequest,
			Message:  ErrorUnmarshal,
			Platform: u.Platform(),
			Details:  err.Error(),
		})
		return
	}
	res := u.Post(c.Request.Context(), c.GetString("user_id"), req.Text)
	c.JSON(res.Code, res)
}

func (h *SocialHandler) Account(c *gin.Context) {
	u, ok := h.lookup(c)
	if !ok {
		return
	}
	res := u.GetAccount(c.Request.Context(), c.GetString("user_id"))
	c.JSON(res.Code, res)
}
