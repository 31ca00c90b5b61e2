package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"social-gateway/domain/autherror"
	"social-gateway/domain/dto"
	"social-gateway/domain/model"
	"social-gateway/usecase"
)

type IAuthHandler interface {
	Authorize(c *gin.Context)
	Callback(c *gin.Context)
	Status(c *gin.Context)
	Disconnect(c *gin.Context)
}

// AuthHandler serves the OAuth lifecycle endpoints for every registered
// platform; the :platform path parameter selects the usecase.
type AuthHandler struct {
	usecases map[string]usecase.IAuthUsecase
}

func NewAuthHandler(usecases map[string]usecase.IAuthUsecase) IAuthHandler {
	return &AuthHandler{usecases: usecases}
}

func (h *AuthHandler) lookup(c *gin.Context) (usecase.IAuthUsecase, string, bool) {
	platform := c.Param("platform")
	u, ok := h.usecases[platform]
	if !ok {
		c.JSON(http.StatusNotFound, dto.Res{
			Status:   dto.StatusError,
			Code:     http.StatusNotFound,
			Message:  "unknown platform",
			Platform: platform,
		})
		return nil, platform, false
	}
	return u, platform, true
}

func (h *AuthHandler) Authorize(c *gin.Context) {
	u, platform, ok := h.lookup(c)
	if !ok {
		return
	}
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, dto.Res{
			Status:   dto.StatusError,
			Code:     http.StatusUnauthorized,
			Message:  "Unauthorized",
			Platform: platform,
		})
		return
	}
	authorize, err := u.StartAuthorization(c.Request.Context(), userID)
	if err != nil {
		res := usecase.ErrorResponse(platform, err)
		c.JSON(res.Code, res)
		return
	}
	res := usecase.SuccessResponse(platform, authorize)
	c.JSON(res.Code, res)
}

// Callback is hit by the platform's redirect; the user is recovered from the
// consumed state token, never from a session.
func (h *AuthHandler) Callback(c *gin.Context) {
	u, platform, ok := h.lookup(c)
	if !ok {
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	errParam := c.Query("error")
	if errParam == "" && code == "" {
		res := usecase.ErrorResponse(platform, autherror.ErrInvalidState)
		res.Message = "missing code"
		c.JSON(res.Code, res)
		return
	}
	cred, err := u.HandleCallback(c.Request.Context(), code, state, errParam)
	if err != nil {
		res := usecase.ErrorResponse(platform, err)
		c.JSON(res.Code, res)
		return
	}
	res := usecase.SuccessResponse(platform, gin.H{
		"user_id":   cred.UserID,
		"connected": true,
	})
	c.JSON(res.Code, res)
}

// Status reports connection state and token validity. The IsConnected pass
// also purges credentials that are expired beyond recovery.
func (h *AuthHandler) Status(c *gin.Context) {
	u, platform, ok := h.lookup(c)
	if !ok {
		return
	}
	connected, err := u.IsConnected(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		res := usecase.ErrorResponse(platform, err)
		c.JSON(res.Code, res)
		return
	}
	if !connected {
		res := usecase.SuccessResponse(platform, &model.TokenValidity{})
		c.JSON(res.Code, res)
		return
	}
	validity, err := u.GetTokenValidity(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		res := usecase.ErrorResponse(platform, err)
		c.JSON(res.Code, res)
		return
	}
	res := usecase.SuccessResponse(platform, validity)
	c.JSON(res.Code, res)
}

func (h *AuthHandler) Disconnect(c *gin.Context) {
	u, platform, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := u.Disconnect(c.Request.Context(), c.GetString("user_id")); err != nil {
		res := usecase.ErrorResponse(platform, err)
		c.JSON(res.Code, res)
		return
	}
	res := usecase.SuccessResponse(platform, gin.H{"disconnected": true})
	c.JSON(res.Code, res)
}
