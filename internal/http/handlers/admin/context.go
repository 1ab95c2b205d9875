package admin

import (
	handlershared "github.com/matajir-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getOperator(c *gin.Context) (string, bool) {
	return handlershared.GetOperator(c)
}
