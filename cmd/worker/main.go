package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/chat-ai/internal/config"
	"github.com/suPer8Hu/chat-ai/internal/email"
	"github.com/suPer8Hu/chat-ai/internal/logging"
	"github.com/suPer8Hu/chat-ai/internal/store/rabbitmq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxAttempts = 5
	retryDelay  = 30 * time.Second
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		User:       cfg.SMTPUser,
		Pass:       cfg.SMTPPass,
		From:       cfg.SMTPFrom,
		SenderName: cfg.SenderName,
	})

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		return err
	}

	// strict concurrency control
	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		workerID := i
		g.Go(func() error {
			for d := range jobs {
				handleDelivery(gctx, log.With(zap.Int("worker", workerID)), ch, sender, cfg.RabbitQueue, d)
			}
			return nil
		})
	}

	// dispatcher
	g.Go(func() error {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				log.Info("worker shutting down")
				return nil
			case d, ok := <-msgs:
				if !ok {
					return fmt.Errorf("delivery channel closed")
				}
				jobs <- d
			}
		}
	})
	return g.Wait()
}

func handleDelivery(ctx context.Context, log *zap.Logger, ch *amqp.Channel, sender email.Sender, queue string, d amqp.Delivery) {
	m, attempt, err := rabbitmq.DecodeMail(d)
	if err != nil {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = sender.Send(sendCtx, m)
	cancel()
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
		log.Info("mail sent", zap.String("to", m.To), zap.Duration("cost", time.Since(start)))
		return
	}

	log.Warn("mail delivery failed",
		zap.String("to", m.To),
		zap.Int("attempt", attempt+1),
		zap.Error(err),
	)
	if attempt+1 >= maxAttempts {
		// dead-letters to the DLQ
		_ = d.Nack(false, false)
		return
	}

	pub, perr := rabbitmq.NewMailPublishing(m, attempt+1)
	if perr == nil {
		pub.Expiration = strconv.FormatInt(retryDelay.Milliseconds(), 10)
		perr = ch.PublishWithContext(ctx, "", rabbitmq.RetryQueue(queue), false, false, pub)
	}
	if perr != nil {
		log.Error("schedule retry failed", zap.Error(perr))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
