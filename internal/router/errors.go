package router

import (
	"errors"
	"log/slog"
	"net/http"

	"food_order/internal/auth"
	"food_order/internal/menu"
	"food_order/internal/order"
	"food_order/internal/storefront"

	"github.com/gin-gonic/gin"
)

// writeError 按错误类型映射 HTTP 状态码并输出统一的 {"code","msg"} 结构。
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var (
		notFound    *order.ItemNotFoundError
		unavailable *order.ItemUnavailableError
		badMove     *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error(), "data": gin.H{"missing_ids": notFound.IDs}})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error(), "data": gin.H{"unavailable_items": unavailable.Names}})
	case errors.As(err, &badMove):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error(), "data": gin.H{"from": badMove.From, "to": badMove.To}})
	case errors.Is(err, order.ErrStoreClosed),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrUnknownCustomer),
		errors.Is(err, order.ErrReasonRequired),
		errors.Is(err, menu.ErrInvalidInput),
		errors.Is(err, menu.ErrSameStatus),
		errors.Is(err, menu.ErrNoChanges),
		errors.Is(err, menu.ErrInUse),
		errors.Is(err, storefront.ErrAlreadyOpen),
		errors.Is(err, storefront.ErrAlreadyClosed),
		errors.Is(err, storefront.ErrInvalidPeriod):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
	case errors.Is(err, auth.ErrInvalidCreds), errors.Is(err, auth.ErrInactive):
		c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": err.Error()})
	case errors.Is(err, order.ErrNotFound), errors.Is(err, menu.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": err.Error()})
	case errors.Is(err, order.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": err.Error()})
	default:
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": msg})
}
