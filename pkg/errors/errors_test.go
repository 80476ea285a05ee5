package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	inner := NewAppError(ErrNotFound, "snapshot missing", nil)
	wrapped := Wrap(fmt.Errorf("load: %w", inner), "failed to load")

	var appErr *AppError
	assert.True(t, As(wrapped, &appErr))
	assert.Equal(t, ErrNotFound, appErr.Code())
	assert.Equal(t, "failed to load", appErr.Message())

	plain := Wrap(New("boom"), "failed")
	assert.True(t, As(plain, &appErr))
	assert.Equal(t, ErrInternal, appErr.Code())
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message interface{}
	}{
		{name: "not found", err: NewAppError(ErrNotFound, "no snapshot", nil), status: http.StatusNotFound, message: "no snapshot"},
		{name: "conflict", err: NewAppError(ErrConflict, "busy", nil), status: http.StatusConflict, message: "busy"},
		{name: "precondition", err: NewAppError(ErrFailedPrecondition, "unknown currency", nil), status: http.StatusUnprocessableEntity, message: "unknown currency"},
		{name: "internal hides cause", err: NewAppError(ErrInternal, "db", New("password=secret")), status: http.StatusInternalServerError, message: "Internal Server Error"},
		{name: "echo error passes through", err: echo.NewHTTPError(http.StatusBadRequest, "bad page"), status: http.StatusBadRequest, message: "bad page"},
		{name: "plain error", err: New("boom"), status: http.StatusInternalServerError, message: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := ToHTTPError(tt.err)
			assert.Equal(t, tt.status, he.Code)
			assert.Equal(t, tt.message, he.Message)
		})
	}

	assert.Nil(t, ToHTTPError(nil))
}

func TestGetCodeMapping(t *testing.T) {
	status, grpcCode := GetCodeMapping(ErrFailedPrecondition)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, 9, grpcCode)

	status, grpcCode = GetCodeMapping("SOMETHING_ELSE")
	assert.Equal(t, 500, status)
	assert.Equal(t, 13, grpcCode)
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	LogError(logger, nil, "ignored")
	LogError(logger, NewAppError(ErrConflict, "busy", nil), "run rejected", zap.String("path", "/api/v1/reconciliations"))
	LogError(logger, fmt.Errorf("save: %w", New("connection refused")), "run failed")

	entries := logs.All()
	assert.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, ErrConflict, fields["error_code"])
	assert.Equal(t, int64(http.StatusConflict), fields["http_status"])
	assert.Equal(t, int64(6), fields["grpc_code"])
	assert.Equal(t, "/api/v1/reconciliations", fields["path"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, ErrInternal, entries[1].ContextMap()["error_code"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNotFound, CodeOf(fmt.Errorf("query: %w", NewAppError(ErrNotFound, "missing", nil))))
	assert.Equal(t, ErrInternal, CodeOf(New("boom")))
}
