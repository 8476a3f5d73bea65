package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/timetutor/internal/docstore"
)

// Kind категория ошибки бизнес-операции
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindStore      Kind = "STORE_ERROR"
	KindTimeout    Kind = "TIMEOUT_ERROR"
	KindAuth       Kind = "AUTH_ERROR"
	KindUnknown    Kind = "UNKNOWN_ERROR"
)

// Error ошибка сервиса с категорией; Message показывается пользователю как есть
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable сообщает, безопасно ли повторить операцию целиком
func (e *Error) Retryable() bool {
	return e.Kind == KindStore || e.Kind == KindTimeout
}

func ValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func AuthError(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func PersistenceError(msg string, err error) *Error {
	return &Error{Kind: KindStore, Message: msg, Err: err}
}

// wrapStore превращает ошибку хранилища в ошибку сервиса нужной категории
func wrapStore(msg string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := Classify(err)
	if kind == KindUnknown {
		kind = KindStore
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Classify определяет категорию произвольной ошибки
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalid):
		return KindValidation
	case errors.Is(err, docstore.ErrConflict), errors.Is(err, docstore.ErrQuota):
		return KindStore
	}
	return KindUnknown
}

// IsRetryable сообщает, можно ли повторить операцию после ошибки
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindStore, KindTimeout:
		return true
	}
	return false
}

// IsQuota отличает исчерпание квоты хранилища от прочих ошибок хранилища
func IsQuota(err error) bool {
	return errors.Is(err, docstore.ErrQuota)
}
