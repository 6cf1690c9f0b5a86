// Package errs 定义业务错误分类，HTTP 层根据 Kind 映射状态码
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicate
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error 带类别的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别即视为匹配，便于 errors.Is(err, errs.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// 类别哨兵，仅用于 errors.Is 比较
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrDuplicate      = &Error{Kind: KindDuplicate}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrServer         = &Error{Kind: KindServer}
)

// New 创建业务错误
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap 包装底层错误
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) error     { return New(KindValidation, msg) }
func Duplicate(msg string) error      { return New(KindDuplicate, msg) }
func Authentication(msg string) error { return New(KindAuthentication, msg) }
func Authorization(msg string) error  { return New(KindAuthorization, msg) }
func NotFound(msg string) error       { return New(KindNotFound, msg) }

// Server 服务端错误，msg 不会返回给客户端
func Server(msg string, err error) error {
	return Wrap(KindServer, msg, err)
}

// KindOf 返回错误链上第一个业务错误的类别
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message 返回可以暴露给客户端的信息
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindServer || e.Kind == KindUnknown {
		return "Internal server error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}
