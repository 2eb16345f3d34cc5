package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

const maxWebhookBodyBytes = 1 << 20

// 在群组或私聊中发送这些文字可以查看开放报名的班次
var listShiftsCommands = map[string]bool{
	"班次":     true,
	"shifts": true,
}

// Webhook 处理 LINE 平台推送的事件。群组成员点击公告中的 "报名" 按钮时会收到 postback 事件
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	req, err := line.ParseWebhook(h.config.Line.ChannelSecret, body, r.Header.Get(line.SignatureHeader))
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			h.errorResponse(w, r, http.StatusUnauthorized, "签名无效")
			return
		}
		h.badRequest(w, r, err)
		return
	}

	// 事件处理不应受 LINE 平台断开连接的影响
	ctx := context.WithoutCancel(r.Context())
	for _, event := range req.Events {
		h.handleEvent(ctx, event)
	}

	h.writeJSON(w, r, http.StatusOK, struct {
		Success bool `json:"success"`
	}{
		Success: true,
	})
}

func (h *Handler) handleEvent(ctx context.Context, event line.Event) {
	first, err := h.claimEvent(ctx, event.WebhookEventID)
	if err != nil {
		slog.Warn("无法检查 webhook 事件是否重复", slog.String("event_id", event.WebhookEventID), slog.String("error", err.Error()))
	}
	if !first {
		slog.Info("跳过重复的 webhook 事件", slog.String("event_id", event.WebhookEventID))
		return
	}

	userID := event.Source.UserID

	if event.Type == "postback" && event.Postback != nil {
		data, err := url.ParseQuery(event.Postback.Data)
		if err == nil && data.Get("action") == "apply" {
			// 报名时已经获取过用户资料，不需要再刷新
			h.applyFromPostback(ctx, event, data.Get("shiftId"))
			return
		}
	}

	if event.Type == "message" && event.Message != nil && event.Message.Type == "text" {
		if listShiftsCommands[strings.ToLower(strings.TrimSpace(event.Message.Text))] {
			h.reply(ctx, event.ReplyToken, h.openShiftsReply(ctx))
		}
	}

	if userID != "" && h.profiles != nil {
		if _, err := h.profiles.Refresh(ctx, userID); err != nil {
			slog.Warn("无法刷新用户资料", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
}

func (h *Handler) applyFromPostback(ctx context.Context, event line.Event, shiftIDParam string) {
	var reply string

	shiftID, err := strconv.ParseInt(shiftIDParam, 10, 64)
	switch {
	case err != nil || shiftID <= 0:
		reply = "❌ 无效的班次"
	case event.Source.UserID == "":
		reply = "❌ 无法识别你的身份，请先加 Bot 为好友"
	default:
		reply = h.applyReply(ctx, shiftID, event.Source.UserID)
	}

	h.reply(ctx, event.ReplyToken, reply)
}

func (h *Handler) applyReply(ctx context.Context, shiftID int64, userID string) string {
	result, err := h.service.SubmitApplication(ctx, shiftID, userID)

	var dupErr *domain.DuplicateApplicationError
	switch {
	case err == nil:
		return fmt.Sprintf("✅ %s，报名成功！", result.Application.DisplayName)
	case errors.As(err, &dupErr):
		return fmt.Sprintf("你已经报名过这个班次了（%s）", dupErr.AppliedAt.Local().Format(time.DateTime))
	case errors.Is(err, domain.ErrInvalidState):
		return "❌ 该班次已经完成抽签，无法报名"
	case errors.Is(err, domain.ErrNotFound):
		return "❌ 班次不存在"
	default:
		slog.Error("通过 LINE 报名失败", slog.Int64("shift_id", shiftID), slog.String("user_id", userID), slog.String("error", err.Error()))
		return "❌ 报名失败，请稍后再试"
	}
}

func (h *Handler) openShiftsReply(ctx context.Context) string {
	shifts, err := h.service.ListShifts(ctx, domain.ShiftFilter{Status: domain.ShiftStatusOpen, WithApplications: true})
	if err != nil {
		slog.Error("无法列出开放的班次", slog.String("error", err.Error()))
		return "❌ 无法获取班次列表，请稍后再试"
	}
	if len(shifts) == 0 {
		return "目前没有开放报名的班次"
	}

	var b strings.Builder
	b.WriteString("📋 开放报名的班次：")
	for _, s := range shifts {
		applicants := int32(len(s.Applications))
		if s.ApplicantCount != nil {
			applicants = *s.ApplicantCount
		}
		fmt.Fprintf(&b, "\n#%d %s（需要 %d 人，已报名 %d 人）", s.ID, s.ShiftType, s.RequiredPeople, applicants)
	}

	return b.String()
}

func (h *Handler) reply(ctx context.Context, replyToken, text string) {
	if replyToken == "" || h.replier == nil {
		return
	}

	if err := h.replier.ReplyMessage(ctx, replyToken, line.TextMessage{Text: text}); err != nil {
		slog.Warn("无法回复 LINE 消息", slog.String("error", err.Error()))
	}
}

// claimEvent 返回 false 表示该事件此前已经处理过
func (h *Handler) claimEvent(ctx context.Context, eventID string) (bool, error) {
	if h.redisClient == nil || eventID == "" {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	ttl := time.Duration(h.config.Redis.WebhookDedupTTL) * time.Second
	ok, err := h.redisClient.SetNX(ctx, "webhook:"+eventID, time.Now().Unix(), ttl).Result()
	if err != nil {
		// Redis 不可用时仍然处理事件，重复报名会被数据库的唯一约束拦下
		return true, err
	}

	return ok, nil
}
