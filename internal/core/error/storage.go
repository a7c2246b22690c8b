package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// WrapRedis maps Redis errors to AppError with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapDB maps gorm errors to AppError with appropriate status codes.
func WrapDB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusInternalServerError, DBErrorMessage)
}

// PermissionDenied builds the ownership-violation error surfaced by the API layer.
func PermissionDenied() error {
	return New(nil, http.StatusForbidden, PermissionDeniedMessage)
}
