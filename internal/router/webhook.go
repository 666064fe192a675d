package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"food_order/internal/notify"

	"github.com/gin-gonic/gin"
)

type lineEvent struct {
	Type   string `json:"type"`
	Source struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
}

// lineWebhook 校验 X-Line-Signature 后处理 follow / unfollow，其余事件忽略。
func lineWebhook(f Followers, secret string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, "cannot read body")
			return
		}
		if !notify.VerifySignature(secret, body, c.GetHeader("X-Line-Signature")) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid signature"})
			return
		}

		var payload struct {
			Events []lineEvent `json:"events"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			badRequest(c, "invalid payload")
			return
		}

		ctx := c.Request.Context()
		for _, ev := range payload.Events {
			uid := ev.Source.UserID
			if uid == "" {
				continue
			}
			switch ev.Type {
			case "follow":
				if _, err := f.UpsertCustomer(ctx, uid, ""); err != nil {
					writeError(c, log, err)
					return
				}
				if err := f.SetSubscribed(ctx, uid, true); err != nil {
					writeError(c, log, err)
					return
				}
				log.Info("line follow", "line_user_id", uid)
			case "unfollow":
				if err := f.SetSubscribed(ctx, uid, false); err != nil {
					writeError(c, log, err)
					return
				}
				log.Info("line unfollow", "line_user_id", uid)
			}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok"})
	}
}
