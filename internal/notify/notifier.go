package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/expenseflow-prototype/internal/domain"
	"github.com/xela07ax/expenseflow-prototype/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Notifier публикует события уведомлений в Redis Pub/Sub.
// Каждому получателю — свой канал; подписчики (почтовый воркер, UI-шлюз)
// сами решают, как доставлять.
//
// Публикация обернута в контур надежности: rate limiter защищает Redis от
// шторма при массовых активациях этапов, circuit breaker отсекает мертвый
// Redis, retry сглаживает кратковременные сбои сети.
type Notifier struct {
	rdb     *redis.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewNotifier(rdb *redis.Client, logger *zap.Logger) *Notifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-redis",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Notifier{
		rdb:     rdb,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(200), 50),
		logger:  logger.Named("notifier"),
	}
}

// Publish отправляет одно уведомление. Ошибка возвращается вызывающему,
// но решение уже закоммичено — откатывать нечего, каллер только логирует.
func (n *Notifier) Publish(ctx context.Context, notification domain.Notification) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	channel := infra.UserNotifyChannel(notification.RecipientUserID)

	_, err = n.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
		)
		return nil, r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return n.rdb.Publish(tCtx, channel, payload).Err()
		})
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	n.logger.Debug("notification published",
		zap.String("channel", channel),
		zap.String("type", string(notification.Type)))
	return nil
}
