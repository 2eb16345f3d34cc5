package notify

import (
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

// ApplyPostbackData 是群组成员点击 "报名" 按钮时回传给 webhook 的数据
func ApplyPostbackData(shiftID int64) string {
	return fmt.Sprintf("action=apply&shiftId=%d", shiftID)
}

func NewShiftMessages(data domain.NewShiftNotificationData) []line.Message {
	bubble := map[string]any{
		"type": "bubble",
		"header": map[string]any{
			"type":   "box",
			"layout": "vertical",
			"contents": []any{
				map[string]any{"type": "text", "text": "📢 新班次开放报名", "weight": "bold", "size": "lg"},
			},
		},
		"body": map[string]any{
			"type":    "box",
			"layout":  "vertical",
			"spacing": "sm",
			"contents": []any{
				infoRow("班次", data.ShiftType),
				infoRow("人数", fmt.Sprintf("%d 人", data.RequiredPeople)),
				infoRow("编号", fmt.Sprintf("#%d", data.ShiftID)),
			},
		},
		"footer": map[string]any{
			"type":   "box",
			"layout": "vertical",
			"contents": []any{
				map[string]any{
					"type":  "button",
					"style": "primary",
					"action": map[string]any{
						"type":        "postback",
						"label":       "报名",
						"data":        ApplyPostbackData(data.ShiftID),
						"displayText": fmt.Sprintf("我要报名 %s", data.ShiftType),
					},
				},
			},
		},
	}

	return []line.Message{
		line.FlexMessage{
			AltText:  fmt.Sprintf("新班次：%s，需要 %d 人", data.ShiftType, data.RequiredPeople),
			Contents: bubble,
		},
	}
}

func infoRow(label, value string) map[string]any {
	return map[string]any{
		"type":   "box",
		"layout": "baseline",
		"contents": []any{
			map[string]any{"type": "text", "text": label, "color": "#aaaaaa", "size": "sm", "flex": 1},
			map[string]any{"type": "text", "text": value, "wrap": true, "size": "sm", "flex": 5},
		},
	}
}

func ResultText(data domain.ShiftResultNotificationData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 班次 %s（#%d）抽签结果\n", data.ShiftType, data.ShiftID)
	fmt.Fprintf(&b, "需要 %d 人，抽中 %d 人：", data.RequiredPeople, len(data.Selected))
	for i, u := range data.Selected {
		fmt.Fprintf(&b, "\n%d. %s", i+1, u.DisplayName)
	}

	return b.String()
}

func ResultMessages(data domain.ShiftResultNotificationData) []line.Message {
	return []line.Message{line.TextMessage{Text: ResultText(data)}}
}
