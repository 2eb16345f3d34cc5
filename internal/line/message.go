package line

import "encoding/json"

// Message 是可以直接序列化为 LINE 消息对象的值
type Message interface {
	json.Marshaler
}

type TextMessage struct {
	Text string
}

func (m TextMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type": "text",
		"text": m.Text,
	})
}

// FlexMessage 的 Contents 为 flex 容器（bubble / carousel）的 JSON 结构
type FlexMessage struct {
	AltText  string
	Contents any
}

func (m FlexMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":     "flex",
		"altText":  m.AltText,
		"contents": m.Contents,
	})
}
