package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "admin"

// Required 要求 Bearer token，成功后把 Principal 放进 gin.Context。
func Required(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := fromHeader(s, c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "unauthorized"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Optional 有合法 token 时设置 Principal，否则放行。
func Optional(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := fromHeader(s, c); ok {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// FromContext 取出当前管理员。
func FromContext(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// AdminID 便于写 changed_by 一类可空列。
func AdminID(c *gin.Context) *uint {
	p, ok := FromContext(c)
	if !ok {
		return nil
	}
	id := p.AdminID
	return &id
}

func fromHeader(s *Service, c *gin.Context) (*Principal, bool) {
	h := c.GetHeader("Authorization")
	tok, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		// EventSource 无法设置请求头，SSE 允许 query 传 token。
		tok = c.Query("token")
	}
	if tok == "" {
		return nil, false
	}
	p, err := s.Validate(tok)
	if err != nil {
		return nil, false
	}
	return p, true
}
