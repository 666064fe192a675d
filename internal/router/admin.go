package router

import (
	"log/slog"
	"net/http"
	"strconv"

	"food_order/internal/auth"
	"food_order/internal/notify"
	"food_order/internal/realtime"
	"food_order/internal/storefront"

	"github.com/gin-gonic/gin"
)

func login(s *auth.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := s.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
	}
}

func profile() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := auth.FromContext(c)
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

func storeStatus(s *storefront.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := s.Status(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

type storeNotes struct {
	Notes string `json:"notes" binding:"max=500"`
}

func openStore(s *storefront.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req storeNotes
		// body 可以为空
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		st, err := s.Open(c.Request.Context(), auth.AdminID(c), req.Notes)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

func closeStore(s *storefront.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req storeNotes
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		st, err := s.Close(c.Request.Context(), auth.AdminID(c), req.Notes)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

func dailySales(s *storefront.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
		list, err := s.DailySales(c.Request.Context(), limit)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func storeStats(s *storefront.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := strconv.Atoi(c.DefaultQuery("period", "7"))
		if err != nil {
			badRequest(c, "period must be a number of days")
			return
		}
		st, err := s.Stats(c.Request.Context(), period)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": st})
	}
}

func notificationStats(q interface{ Stats() notify.Stats }, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"queue": q.Stats(),
			"realtime": gin.H{
				"subscribers": hub.Subscribers(),
				"dropped":     hub.Dropped(),
			},
		}})
	}
}
