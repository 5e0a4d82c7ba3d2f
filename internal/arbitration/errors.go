package arbitration

import "errors"

var (
	// ErrValidation 必填字段缺失或非法（例如 required_resource 为空），调用方记录日志后正常退出
	ErrValidation = errors.New("validation error")

	// ErrInvalidArgument 调用方误用（例如对少于 2 个争用者调用仲裁）
	ErrInvalidArgument = errors.New("invalid argument")
)
