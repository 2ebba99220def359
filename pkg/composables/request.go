package composables

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lucerna-ai/lucerna/pkg/constants"
)

var (
	ErrNoLogger  = errors.New("no logger found in context")
	ErrNoSubject = errors.New("no subject found in context")
)

// SubjectKind distinguishes end users from back-office operators. Quota
// accounts and conversations are keyed by (kind, id).
type SubjectKind string

const (
	SubjectUser  SubjectKind = "user"
	SubjectAdmin SubjectKind = "admin"
)

type Subject struct {
	ID   uuid.UUID
	Kind SubjectKind
}

func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, constants.SubjectKey, s)
}

func UseSubject(ctx context.Context) (Subject, error) {
	s, ok := ctx.Value(constants.SubjectKey).(Subject)
	if !ok {
		return Subject{}, ErrNoSubject
	}
	return s, nil
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger. Falls back to the standard
// logger so library code never has to nil-check.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logger
}

func MustUseLogger(ctx context.Context) (*logrus.Entry, error) {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	if !ok {
		return nil, ErrNoLogger
	}
	return logger, nil
}

func UseRequestStart(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(constants.RequestStart).(time.Time)
	return start, ok
}
