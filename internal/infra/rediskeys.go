package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "expenseflow"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanNotify — базовый канал уведомлений; на пользователя — суффикс :user:{id}
	RedisChanNotify = RedisNamespace + ":notify"

	// RedisChanRuleUpdate — широковещательный сигнал об изменении правил компании.
	// Инстансы, кэширующие правила, по нему перечитывают набор из БД.
	RedisChanRuleUpdate = RedisNamespace + ":rules:update"
)

// UserNotifyChannel возвращает персональный канал уведомлений пользователя
func UserNotifyChannel(userID string) string {
	return fmt.Sprintf("%s:user:%s", RedisChanNotify, userID)
}
