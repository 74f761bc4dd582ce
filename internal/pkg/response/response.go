package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 1000
	CodeAuthFailed    = 1001
	CodeNotFound      = 1003
	CodeQuotaExceeded = 1004
	CodeServerError   = 5000
)

var codeMessages = map[int]string{
	CodeSuccess:       "success",
	CodeParamError:    "invalid parameters",
	CodeAuthFailed:    "authentication failed",
	CodeNotFound:      "resource not found",
	CodeQuotaExceeded: "quota exceeded",
	CodeServerError:   "internal server error",
}

// Response is the uniform JSON envelope for the web API.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func AuthError(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeAuthFailed, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}
