// Package notify 负责公告的发送：API 进程将通知写入 RabbitMQ，notifier 进程消费并投递到 LINE 与邮件
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

// Channel 是 *amqp.Channel 中用于发布消息的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch             Channel
	queue          string
	target         string
	publishTimeout time.Duration
}

func NewPublisher(ch Channel, queue, target string, publishTimeout time.Duration) *Publisher {
	return &Publisher{
		ch:             ch,
		queue:          queue,
		target:         target,
		publishTimeout: publishTimeout,
	}
}

func (p *Publisher) AnnounceNewShift(ctx context.Context, shift *domain.Shift) error {
	return p.publish(ctx, domain.NotificationTypeNewShift, domain.NewShiftNotificationData{
		ShiftID:        shift.ID,
		ShiftType:      shift.ShiftType,
		RequiredPeople: shift.RequiredPeople,
	})
}

func (p *Publisher) AnnounceResult(ctx context.Context, shift *domain.Shift, selected []*domain.Assignment) error {
	users := make([]domain.SelectedUser, 0, len(selected))
	for _, a := range selected {
		users = append(users, domain.SelectedUser{
			UserID:      a.UserID,
			DisplayName: a.DisplayName,
		})
	}

	return p.publish(ctx, domain.NotificationTypeShiftResult, domain.ShiftResultNotificationData{
		ShiftID:        shift.ID,
		ShiftType:      shift.ShiftType,
		RequiredPeople: shift.RequiredPeople,
		Selected:       users,
	})
}

func (p *Publisher) publish(ctx context.Context, notificationType string, data any) error {
	message := domain.NotificationMessage{
		ID:     uuid.NewString(),
		Type:   notificationType,
		Target: p.target,
		Data:   data,
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    message.ID,
			Timestamp:    time.Now(),
			Type:         notificationType,
			Body:         body,
		},
	)
}
