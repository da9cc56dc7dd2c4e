package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/common"
)

// envelope — формат всех ответов API.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errInvalidBody = common.Errorf(codes.InvalidArgument, "request body must be valid JSON")

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// respondError отдаёт типизированную ошибку. Причина Internal только логируется.
func respondError(c *gin.Context, err error) {
	code := common.CodeOf(err)
	if code == codes.Internal {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Внутренняя ошибка запроса")
	}

	c.AbortWithStatusJSON(httpStatus(code), envelope{
		Success: false,
		Error: &errorBody{
			Code:    common.WireCode(code),
			Message: common.MessageOf(err),
		},
	})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
