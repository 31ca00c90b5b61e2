package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"social-gateway/domain/dto"
	"social-gateway/infrastructure/configuration"
)

// Auth validates the Bearer token and stores the caller's user id in the gin
// context under "user_id". Every protected route reads the user from there.
func Auth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{
			Status:  dto.StatusError,
			Code:    http.StatusUnauthorized,
			Message: "Unauthorized",
		}
		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		auth := strings.Split(authorization, "Bearer ")
		if len(auth) != 2 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		claims, token, err := getClaim(auth[1], secretKey())
		if err != nil || !token.Valid {
			res.Message = describe(err)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		userID := claims.Subject
		if userID == "" {
			userID = claims.Issuer
		}
		if userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		ctx.Set("user_id", userID)
		ctx.Next()
	}
}

func secretKey() string {
	if configuration.C.App.SecretKey != "" {
		return configuration.C.App.SecretKey
	}
	return os.Getenv("SECRET_KEY")
}

func describe(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			// Token is either expired or not active yet
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}

func getClaim(tokenString, secretKey string) (jwt.StandardClaims, *jwt.Token, error) {
	var claims jwt.StandardClaims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		},
	)
	return claims, token, err
}
