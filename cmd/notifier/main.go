package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/wneessen/go-mail"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/notify"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	var mailer notify.Mailer
	if cfg.Email.Enabled {
		client, err := mail.NewClient(cfg.Email.SMTP.Host,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithSSL(),
			mail.WithPort(cfg.Email.SMTP.Port),
			mail.WithUsername(cfg.Email.SMTP.Username),
			mail.WithPassword(cfg.Email.SMTP.Password),
		)
		if err != nil {
			logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
			return
		}
		// 验证邮件客户端是否连接成功
		clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
		defer cancel()
		if err := client.DialWithContext(clientDialCtx); err != nil {
			logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
			return
		}
		// 每次发送时重新建立连接，这里只用于验证配置
		if err := client.Close(); err != nil {
			logger.Warn("无法关闭邮件服务器连接", slog.String("error", err.Error()))
		}

		mailer = notify.NewSMTPMailer(client, cfg.Email.SMTP.Username, cfg.Email.Recipients)
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.NotificationQueue, // 队列名称
		true,                           // 是否持久化
		false,                          // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false,                          // 是否独占，即是否允许多个消费者访问这个队列
		false,                          // 是否不等待，设置为 false，即等待 RabbitMQ 确认队列是否创建成功
		nil,                            // 额外参数
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 一次只处理一条消息，保证公告按顺序推送
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false,  // 是否自动确认消息
		false,  // 是否独占队列
		false,  // 是否禁止消费者接受自己发送的消息，必须设置为 false，因为 RabbitMQ 不支持这个参数
		false,  // 是否不等待，等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	worker := notify.NewWorker(notify.WorkerConfig{
		Pusher:          line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken, time.Duration(cfg.Line.RequestTimeout)*time.Second),
		Mailer:          mailer,
		Redis:           rdb,
		DedupTTL:        time.Duration(cfg.Redis.WebhookDedupTTL) * time.Second,
		DeliveryTimeout: time.Duration(cfg.Allocation.DispatchTimeout) * time.Second,
		Logger:          logger,
	})

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Consume(ctx, msgs)
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待通知...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 notifier...")
	cancel()
	wg.Wait() // 等待所有 goroutine 完成
	logger.Info("notifier 已成功关闭")
}
