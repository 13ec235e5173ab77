package apperr

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок домена. Сравнивать через errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// NotFound оборачивает ErrNotFound с указанием сущности
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Invalid оборачивает ErrInvalidInput с форматированным описанием
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// Unavailable оборачивает ошибку хранилища. Исходная ошибка остается в цепочке.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsNotFound сокращение для errors.Is(err, ErrNotFound)
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid сокращение для errors.Is(err, ErrInvalidInput)
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
