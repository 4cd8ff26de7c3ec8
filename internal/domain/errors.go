package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — сущность (расход, запись согласования, правило) не найдена
	ErrNotFound = errors.New("entity not found")

	// ErrConflict — попытка повторного решения по уже обработанной записи
	// или действие от пользователя, которому запись не принадлежит
	ErrConflict = errors.New("conflicting decision")

	// ErrTerminalStatus — расход уже в финальном статусе, изменения запрещены
	ErrTerminalStatus = errors.New("expense status is terminal")
)

// ValidationError возвращается при некорректной конфигурации правила.
// Проверка выполняется на границе (парсинг запроса), до любой записи в БД.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError хелпер для единообразных ошибок валидации
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации (для маппинга в HTTP 400)
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
