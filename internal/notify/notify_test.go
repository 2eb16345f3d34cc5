package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

type fakeChannel struct {
	exchange, key string
	published     []amqp.Publishing
	err           error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange, c.key = exchange, key
	c.published = append(c.published, msg)
	return nil
}

func TestPublisherAnnounceNewShift(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "notification_queue", "C1", time.Second)

	err := p.AnnounceNewShift(context.Background(), &domain.Shift{ID: 3, ShiftType: "值班", RequiredPeople: 2})
	require.NoError(t, err)
	require.Equal(t, "notification_queue", ch.key)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.NotEmpty(t, msg.MessageId)

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Body, &env))
	require.Equal(t, msg.MessageId, env.ID)
	require.Equal(t, domain.NotificationTypeNewShift, env.Type)
	require.Equal(t, "C1", env.Target)

	var data domain.NewShiftNotificationData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, domain.NewShiftNotificationData{ShiftID: 3, ShiftType: "值班", RequiredPeople: 2}, data)
}

func TestPublisherAnnounceResult(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "q", "C1", time.Second)

	selected := []*domain.Assignment{{ShiftID: 3, UserID: "u1", DisplayName: "小明"}}
	require.NoError(t, p.AnnounceResult(context.Background(), &domain.Shift{ID: 3, ShiftType: "值班", RequiredPeople: 1}, selected))

	var env envelope
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &env))
	var data domain.ShiftResultNotificationData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, []domain.SelectedUser{{UserID: "u1", DisplayName: "小明"}}, data.Selected)

	ch.err = errors.New("channel closed")
	require.Error(t, p.AnnounceResult(context.Background(), &domain.Shift{ID: 3}, nil))
}

func TestNewShiftMessagesCarryApplyPostback(t *testing.T) {
	messages := NewShiftMessages(domain.NewShiftNotificationData{ShiftID: 42, ShiftType: "打扫卫生", RequiredPeople: 2})
	require.Len(t, messages, 1)

	raw, err := json.Marshal(messages[0])
	require.NoError(t, err)

	var flex struct {
		Type     string `json:"type"`
		AltText  string `json:"altText"`
		Contents struct {
			Footer struct {
				Contents []struct {
					Action struct {
						Type string `json:"type"`
						Data string `json:"data"`
					} `json:"action"`
				} `json:"contents"`
			} `json:"footer"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(raw, &flex))
	require.Equal(t, "flex", flex.Type)
	require.Contains(t, flex.AltText, "打扫卫生")
	require.Len(t, flex.Contents.Footer.Contents, 1)

	action := flex.Contents.Footer.Contents[0].Action
	require.Equal(t, "postback", action.Type)
	require.Equal(t, "action=apply&shiftId=42", action.Data)
	require.Equal(t, ApplyPostbackData(42), action.Data)
}

func TestResultText(t *testing.T) {
	text := ResultText(domain.ShiftResultNotificationData{
		ShiftID:        5,
		ShiftType:      "值班",
		RequiredPeople: 2,
		Selected:       []domain.SelectedUser{{UserID: "u1", DisplayName: "小明"}, {UserID: "u2", DisplayName: "小红"}},
	})

	require.Contains(t, text, "值班")
	require.Contains(t, text, "1. 小明")
	require.Contains(t, text, "2. 小红")
}

func TestEmailTemplatesRender(t *testing.T) {
	email, err := emailFor(domain.NotificationTypeShiftResult, domain.ShiftResultNotificationData{
		ShiftID:   5,
		ShiftType: "值班",
		Selected:  []domain.SelectedUser{{DisplayName: "<小明>"}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, email.Template.Execute(&buf, email.Data))
	require.Contains(t, buf.String(), "&lt;小明&gt;")

	email, err = emailFor(domain.NotificationTypeNewShift, domain.NewShiftNotificationData{ShiftID: 1, ShiftType: "早班", RequiredPeople: 3})
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, email.Template.Execute(&buf, email.Data))
	require.Contains(t, buf.String(), "早班")

	_, err = emailFor("unknown", nil)
	require.Error(t, err)
}

type fakePusher struct {
	mu     sync.Mutex
	pushed map[string][]line.Message
	err    error
}

func (p *fakePusher) PushMessage(_ context.Context, to string, messages ...line.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	if p.pushed == nil {
		p.pushed = map[string][]line.Message{}
	}
	p.pushed[to] = append(p.pushed[to], messages...)
	return nil
}

type fakeMailer struct {
	sent []*Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, email *Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func resultBody(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(domain.NotificationMessage{
		ID:     "id-1",
		Type:   domain.NotificationTypeShiftResult,
		Target: "C1",
		Data:   domain.ShiftResultNotificationData{ShiftID: 1, ShiftType: "值班", RequiredPeople: 1, Selected: []domain.SelectedUser{{UserID: "u1", DisplayName: "小明"}}},
	})
	require.NoError(t, err)
	return body
}

func TestWorkerHandle(t *testing.T) {
	pusher := &fakePusher{}
	mailer := &fakeMailer{}
	w := NewWorker(WorkerConfig{Pusher: pusher, Mailer: mailer})

	require.NoError(t, w.Handle(context.Background(), resultBody(t)))
	require.Len(t, pusher.pushed["C1"], 1)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "班次抽签 - 抽签结果", mailer.sent[0].Subject)
}

func TestWorkerHandleMailFailureIsNotFatal(t *testing.T) {
	pusher := &fakePusher{}
	w := NewWorker(WorkerConfig{Pusher: pusher, Mailer: &fakeMailer{err: errors.New("smtp down")}})

	require.NoError(t, w.Handle(context.Background(), resultBody(t)))
	require.Len(t, pusher.pushed["C1"], 1)
}

func TestWorkerHandleErrors(t *testing.T) {
	w := NewWorker(WorkerConfig{Pusher: &fakePusher{}})

	require.ErrorIs(t, w.Handle(context.Background(), []byte("not json")), ErrMalformed)
	require.ErrorIs(t, w.Handle(context.Background(), []byte(`{"id":"x","type":"unknown","target":"C1"}`)), ErrMalformed)
	require.ErrorIs(t, w.Handle(context.Background(), []byte(`{"id":"x","type":"new_shift","target":""}`)), ErrMalformed)

	w = NewWorker(WorkerConfig{Pusher: &fakePusher{err: errors.New("line down")}})
	err := w.Handle(context.Background(), resultBody(t))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMalformed)
}

type fakeAcknowledger struct {
	mu       sync.Mutex
	acked    int
	requeued int
	dropped  int
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func TestWorkerConsume(t *testing.T) {
	pusher := &fakePusher{}
	w := NewWorker(WorkerConfig{Pusher: pusher})
	ack := &fakeAcknowledger{}

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: resultBody(t)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("garbage")}
	close(deliveries)

	w.Consume(context.Background(), deliveries)

	require.Equal(t, 1, ack.acked)
	require.Equal(t, 1, ack.dropped)
	require.Zero(t, ack.requeued)
}
