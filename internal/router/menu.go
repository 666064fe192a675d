package router

import (
	"log/slog"
	"net/http"
	"strconv"

	"food_order/internal/auth"
	"food_order/internal/menu"
	"food_order/internal/model"
	"food_order/internal/store"

	"github.com/gin-gonic/gin"
)

func listMenu(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.List(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// adminMenu 后台菜单列表：?search=&status=&limit=&offset=
func adminMenu(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		page, err := s.AdminList(c.Request.Context(), store.MenuFilter{
			Search: c.Query("search"),
			Status: model.MenuStatus(c.Query("status")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": page})
	}
}

func getMenuItem(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		m, err := s.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": m})
	}
}

func createMenuItem(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in menu.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := s.Create(c.Request.Context(), in, auth.AdminID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": m})
	}
}

func updateMenuItem(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var in menu.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, err := s.Update(c.Request.Context(), id, in, auth.AdminID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": m})
	}
}

func setMenuStatus(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			Status model.MenuStatus `json:"status" binding:"required"`
			Reason string           `json:"reason" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		m, old, err := s.SetStatus(c.Request.Context(), id, req.Status, req.Reason, auth.AdminID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"item":       m,
			"old_status": old,
			"new_status": m.Status,
		}})
	}
}

func deleteMenuItem(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := s.Delete(c.Request.Context(), id, auth.AdminID(c)); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "deleted"})
	}
}

func bulkMenuStatus(s *menu.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ItemIDs []uint           `json:"item_ids" binding:"required,min=1,dive,min=1"`
			Status  model.MenuStatus `json:"status" binding:"required"`
			Reason  string           `json:"reason" binding:"max=300"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := s.BulkSetStatus(c.Request.Context(), req.ItemIDs, req.Status, req.Reason, auth.AdminID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": res})
	}
}
