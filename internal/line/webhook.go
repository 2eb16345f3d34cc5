package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidSignature = errors.New("line: invalid signature")

const SignatureHeader = "X-Line-Signature"

// VerifySignature 校验请求体的 HMAC-SHA256 签名
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)

	return hmac.Equal(decoded, mac.Sum(nil))
}

// Sign 生成与 VerifySignature 对应的签名
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

type Postback struct {
	Data string `json:"data"`
}

// EventMessage 是 message 事件携带的消息，这里只关心文本消息
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type Event struct {
	Type            string          `json:"type"`
	WebhookEventID  string          `json:"webhookEventId"`
	Timestamp       int64           `json:"timestamp"`
	ReplyToken      string          `json:"replyToken"`
	Source          EventSource     `json:"source"`
	Postback        *Postback       `json:"postback,omitempty"`
	Message         *EventMessage   `json:"message,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
}

// ParseWebhook 在校验签名后解析请求体
func ParseWebhook(channelSecret string, body []byte, signature string) (*WebhookRequest, error) {
	if !VerifySignature(channelSecret, body, signature) {
		return nil, ErrInvalidSignature
	}

	req := &WebhookRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, err
	}

	return req, nil
}
