package errors

import (
	"go.uber.org/zap"
)

// LogError logs err with its application code and the transport codes the
// code maps to. Client-side codes (4xx) log at warn level, the rest at error.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	code := CodeOf(err)
	httpStatus, grpcCode := GetCodeMapping(code)

	allFields := make([]zap.Field, 0, len(fields)+4)
	allFields = append(allFields,
		zap.Error(err),
		zap.String("error_code", code),
		zap.Int("http_status", httpStatus),
		zap.Int("grpc_code", grpcCode))
	allFields = append(allFields, fields...)

	if httpStatus < 500 {
		logger.Warn(msg, allFields...)
		return
	}
	logger.Error(msg, allFields...)
}
