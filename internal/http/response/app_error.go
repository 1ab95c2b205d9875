package response

import "github.com/gin-gonic/gin"

// AppError 携带业务码的错误，Err 为底层原因
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ServerSide 是否为服务端故障（存储、依赖不可用等）
func (e *AppError) ServerSide() bool {
	return e.Code >= CodeInternal
}

// Write 以统一信封写回，底层原因不对外暴露
func (e *AppError) Write(c *gin.Context) {
	Error(c, e.Code, e.Message)
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
