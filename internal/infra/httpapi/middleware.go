package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// AuthMiddleware verifies an HS256 bearer token and stores the numeric
// "sub" claim as the caller's user id. Tokens are issued elsewhere.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, apperror.ErrUnauthorized)
			return
		}

		userID, err := parseUserID(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			abortWithError(c, apperror.Wrap(err, apperror.WithMessage(apperror.ErrUnauthorized, "Invalid or expired token")))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func parseUserID(tokenString, secret string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q is not a user id", sub)
	}
	return id, nil
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// RequestLogger logs one line per request and records its latency under
// the matched route, so ids in paths do not explode label cardinality.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}
}
