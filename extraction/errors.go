package extraction

import (
	"errors"
	"net/http"
)

// Kind 失败阶段
type Kind string

const (
	KindInvalidInput         Kind = "InvalidInput"
	KindExtractionFailed     Kind = "ExtractionFailed"
	KindIncompleteExtraction Kind = "IncompleteExtraction"
	KindPersistenceFailed    Kind = "PersistenceFailed"
	KindAuthRequired         Kind = "AuthRequired"
)

// Error 带阶段标记的错误，Message 可直接展示给最终用户
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus 错误对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindIncompleteExtraction:
		return http.StatusBadRequest
	case KindAuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf 取出错误阶段，非 *Error 返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind 判断错误是否属于某阶段
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
