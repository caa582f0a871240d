package errs

import (
	stderr "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ===== 错误分类（对外统一的错误口径）=====
//
// Code 为 HTTP 风格状态码，Reason 为稳定的机器可读标签。
// 所有 handler 边界只对外暴露这几类错误。
var (
	ErrDataInvalid          = NewCodeError(401, "DATA_INVALID", "invalid request data")
	ErrAuthInvalid          = NewCodeError(401, "AUTH_INVALID", "connection not authenticated")
	ErrPermissionDenied     = NewCodeError(403, "PERMISSION_DENIED", "insufficient permission")
	ErrApplicationProcessed = NewCodeError(403, "APPLICATION_ALREADY_PROCESSED", "application already processed")
	ErrUserBlocked          = NewCodeError(403, "USER_BLOCKED", "member is blocked in this server")
	ErrInternal             = NewCodeError(500, "EXCEPTION_ERROR", "internal server error")
)

type CodeErrorI interface {
	ECode() int
	EReason() string
	EMsg() string
	WithDetail(detail string) CodeError
	error
}

func NewCodeError(code int, reason, msg string) CodeError {
	return CodeError{
		Code:   code,
		Reason: reason,
		Msg:    msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) ECode() int      { return e.Code }
func (e CodeError) EReason() string { return e.Reason }
func (e CodeError) EMsg() string    { return e.Msg }

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Reason: e.Reason,
		Msg:    e.Msg,
		Detail: d,
	}
}

func (e CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg 附加上下文后带栈返回
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if ret.Detail == "" {
			ret.Detail = detail
		} else {
			ret.Detail += ", " + detail
		}
	}
	return errors.WithStack(ret)
}

func (e CodeError) Is(err error) bool {
	var codeErr CodeError
	if !stderr.As(Unwrap(err), &codeErr) {
		return false
	}
	return e.Code == codeErr.Code && e.Reason == codeErr.Reason
}

func (e CodeError) Error() string {
	v := make([]string, 0, 4)
	v = append(v, strconv.Itoa(e.Code), e.Reason, e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// AsCodeError 将任意错误归一化为 CodeError。
// 未分类错误一律折叠为 ErrInternal，原始信息进 Detail，不向外层泄露。
func AsCodeError(err error) CodeError {
	if err == nil {
		return CodeError{}
	}
	var codeErr CodeError
	if stderr.As(err, &codeErr) {
		return codeErr
	}
	return ErrInternal.WithDetail(err.Error())
}

func Unwrap(err error) error {
	for err != nil {
		unwrap, ok := err.(interface {
			error
			Unwrap() error
		})
		if !ok {
			break
		}
		next := unwrap.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, toString(msg, kv))
}

func New(msg string, kv ...any) error {
	return errors.New(toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprintf(" %v=%v", kv[i], kv[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf(" %v", kv[i]))
		}
	}
	return sb.String()
}
