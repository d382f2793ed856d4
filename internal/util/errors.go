package util

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidLesson      = errors.New("lesson not found")
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrForbidden          = errors.New("exam session belongs to another user")
	ErrInvalidReference   = errors.New("answer references a question or option outside this exam")
	ErrDeadlineExceeded   = errors.New("exam time limit exceeded")
	ErrAlreadyCompleted   = errors.New("exam already completed")
	ErrReviewNotAvailable = errors.New("review is available after the exam is completed")
	ErrStorageFailure     = errors.New("storage failure")
)

// StorageError 包装底层数据库错误，errors.Is(err, ErrStorageFailure) 成立
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// InvalidRequest 携带具体原因的参数错误
func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
