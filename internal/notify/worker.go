package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

// ErrMalformed 表示消息本身有问题，重新投递也无法成功
var ErrMalformed = errors.New("通知消息格式错误")

type Pusher interface {
	PushMessage(ctx context.Context, to string, messages ...line.Message) error
}

type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

type WorkerConfig struct {
	Pusher          Pusher
	Mailer          Mailer        // 为 nil 时不发送邮件
	Redis           *redis.Client // 为 nil 时不对重复投递去重
	DedupTTL        time.Duration
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
}

type Worker struct {
	pusher          Pusher
	mailer          Mailer
	rdb             *redis.Client
	dedupTTL        time.Duration
	deliveryTimeout time.Duration
	logger          *slog.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		pusher:          cfg.Pusher,
		mailer:          cfg.Mailer,
		rdb:             cfg.Redis,
		dedupTTL:        cfg.DedupTTL,
		deliveryTimeout: cfg.DeliveryTimeout,
		logger:          cfg.Logger,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.deliveryTimeout <= 0 {
		w.deliveryTimeout = 10 * time.Second
	}
	if w.dedupTTL <= 0 {
		w.dedupTTL = 24 * time.Hour
	}

	return w
}

type envelope struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
}

// Consume 处理队列中的消息直到 ctx 被取消或者通道关闭
func (w *Worker) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				w.logger.Warn("消息通道已关闭")
				return
			}

			err := w.Handle(ctx, msg.Body)
			switch {
			case err == nil:
				_ = msg.Ack(false)
			case errors.Is(err, ErrMalformed):
				w.logger.Error("丢弃无法处理的通知", slog.String("message_id", msg.MessageId), slog.String("error", err.Error()))
				_ = msg.Nack(false, false)
			default:
				w.logger.Error("通知投递失败，重新入队", slog.String("message_id", msg.MessageId), slog.String("error", err.Error()))
				_ = msg.Nack(false, true)
			}
		}
	}
}

// Handle 将一条通知投递到 LINE，启用邮件时同时发送邮件。邮件发送失败只记录日志
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Target == "" {
		return fmt.Errorf("%w: 缺少推送目标", ErrMalformed)
	}

	var messages []line.Message
	var data any
	switch env.Type {
	case domain.NotificationTypeNewShift:
		d := domain.NewShiftNotificationData{}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		messages, data = NewShiftMessages(d), d
	case domain.NotificationTypeShiftResult:
		d := domain.ShiftResultNotificationData{}
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		messages, data = ResultMessages(d), d
	default:
		return fmt.Errorf("%w: 不支持的通知类型 %q", ErrMalformed, env.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	defer cancel()

	first, err := w.claim(ctx, env.ID)
	if err != nil {
		return err
	}
	if !first {
		w.logger.Info("通知已经投递过，跳过", slog.String("id", env.ID))
		return nil
	}

	if err := w.pusher.PushMessage(ctx, env.Target, messages...); err != nil {
		w.release(ctx, env.ID)
		return err
	}
	w.logger.Info("已推送通知", slog.String("id", env.ID), slog.String("type", env.Type))

	if w.mailer != nil {
		email, err := emailFor(env.Type, data)
		if err == nil {
			err = w.mailer.Send(ctx, email)
		}
		if err != nil {
			w.logger.Error("邮件发送失败", slog.String("id", env.ID), slog.String("error", err.Error()))
		}
	}

	return nil
}

func dedupKey(id string) string {
	return fmt.Sprintf("notification:%s", id)
}

// claim 标记通知正在投递，返回 false 表示此前已经投递过
func (w *Worker) claim(ctx context.Context, id string) (bool, error) {
	if w.rdb == nil || id == "" {
		return true, nil
	}

	return w.rdb.SetNX(ctx, dedupKey(id), time.Now().Unix(), w.dedupTTL).Result()
}

func (w *Worker) release(ctx context.Context, id string) {
	if w.rdb == nil || id == "" {
		return
	}

	if err := w.rdb.Del(ctx, dedupKey(id)).Err(); err != nil {
		w.logger.Warn("无法清除去重标记", slog.String("id", id), slog.String("error", err.Error()))
	}
}
