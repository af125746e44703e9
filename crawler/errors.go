package crawler

import (
	"context"
	"errors"
	"fmt"
)

// ErrNavigation indicates a crawl unit could not load one of its pages.
// It aborts that unit only.
type ErrNavigation struct {
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation: %w", e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrSession indicates the render session could not be opened
type ErrSession struct {
	Err error
}

func (e ErrSession) Error() string {
	return fmt.Errorf("session: %w", e.Err).Error()
}

func (e ErrSession) Unwrap() error {
	return e.Err
}

// ErrPersistence indicates a batch could not be written. It is logged and
// counted; crawling continues.
type ErrPersistence struct {
	Err error
}

func (e ErrPersistence) Error() string {
	return fmt.Errorf("persistence: %w", e.Err).Error()
}

func (e ErrPersistence) Unwrap() error {
	return e.Err
}

func errorKindLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	var session ErrSession
	if errors.As(err, &session) {
		return "session"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	var persistence ErrPersistence
	if errors.As(err, &persistence) {
		return "persistence"
	}
	return "unknown"
}
