package httpserver

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyUserID    = "auth_user_id"
	headerWebhookSecret = "X-Webhook-Secret"
)

// authMiddleware verifies the bearer token issued by the platform's auth
// collaborator and stores the verified user id on the request context. The
// economy never trusts a client-supplied identity.
func authMiddleware(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return signingKey, nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid session token"))
			return
		}
		subject, err := token.Claims.GetSubject()
		if err != nil || strings.TrimSpace(subject) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("token has no subject"))
			return
		}
		ctx.Set(contextKeyUserID, subject)
		ctx.Next()
	}
}

// webhookMiddleware guards the payment and accrual surfaces called by
// backend collaborators rather than end users.
func webhookMiddleware(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		provided := ctx.GetHeader(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid webhook secret"))
			return
		}
		ctx.Next()
	}
}

func authenticatedUserID(ctx *gin.Context) string {
	value, ok := ctx.Get(contextKeyUserID)
	if !ok {
		return ""
	}
	userID, _ := value.(string)
	return userID
}
