package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"food_order/internal/auth"
	"food_order/internal/model"
	"food_order/internal/order"
	"food_order/internal/store"

	"github.com/gin-gonic/gin"
)

// createOrder 顾客下单。返回订单号与预计时间，通知在后台异步投递。
func createOrder(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CustomerID  *uint             `json:"customer_id"`
			LineUserID  string            `json:"line_user_id" binding:"max=64"`
			DisplayName string            `json:"display_name" binding:"max=128"`
			Items       []order.ItemInput `json:"items" binding:"required,min=1,dive"`
			Notes       string            `json:"customer_notes" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := e.CreateOrder(c.Request.Context(), order.CreateInput{
			CustomerID:  req.CustomerID,
			LineUserID:  req.LineUserID,
			DisplayName: req.DisplayName,
			Items:       req.Items,
			Notes:       req.Notes,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": res})
	}
}

// getOrder 按 id 或订单号查询，含完整状态历史。
func getOrder(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := e.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func listOrders(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.ListFilter{Status: model.Status(c.Query("status"))}
		if d := c.Query("date"); d != "" {
			t, err := time.Parse(time.DateOnly, d)
			if err != nil {
				badRequest(c, "date must be YYYY-MM-DD")
				return
			}
			f.Date = t
		}
		if v := c.Query("customer_id"); v != "" {
			id, ok := parseUintParam(v)
			if !ok {
				badRequest(c, "invalid customer_id")
				return
			}
			f.CustomerID = id
		}
		f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
		f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
		if f.Offset < 0 {
			f.Offset = 0
		}

		list, err := e.ListOrders(c.Request.Context(), f)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func activeOrders(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := e.ActiveOrders(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func orderStats(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := strconv.Atoi(c.DefaultQuery("period", "1"))
		if err != nil || period < 0 || period > 365 {
			badRequest(c, "period must be between 0 and 365")
			return
		}
		st, err := e.Stats(c.Request.Context(), period)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

func updateOrderStatus(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			Status        model.Status `json:"status" binding:"required"`
			Notes         string       `json:"notes" binding:"max=500"`
			EstimatedTime *int         `json:"estimated_time" binding:"omitempty,min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := e.UpdateStatus(c.Request.Context(), order.StatusInput{
			OrderID:       id,
			Status:        req.Status,
			Note:          req.Notes,
			EstimatedTime: req.EstimatedTime,
			AdminID:       auth.AdminID(c),
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
	}
}

func cancelOrder(e *order.Engine, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := e.CancelOrder(c.Request.Context(), id, req.Reason, auth.AdminID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
	}
}
