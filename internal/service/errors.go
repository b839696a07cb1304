package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
	ServiceUnavailable  = 503
)

// 回执错误类型
const (
	KindValidation       = "validation"
	KindNotFound         = "not_found"
	KindForbidden        = "forbidden"
	KindCapacityExceeded = "capacity_exceeded"
	KindStoreUnavailable = "store_unavailable"
	KindUnknownEvent     = "unknown_event"
	KindInternal         = "internal"
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrIdentityKind         = errors.New("身份类型无效")
	ErrIdentityNotFound     = errors.New("身份不存在")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrNotParticipant       = errors.New("不是会话参与者")
	ErrCallFull             = errors.New("通话人数已满")
	ErrNotInCall            = errors.New("未加入该通话")
	ErrStoreUnavailable     = errors.New("存储暂不可用")
	ErrFileNotSupported     = errors.New("不支持的文件类型")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrIdentityKind:         BadRequest,
	ErrIdentityNotFound:     NotFound,
	ErrConversationNotFound: NotFound,
	ErrNotParticipant:       Forbidden,
	ErrCallFull:             Conflict,
	ErrNotInCall:            Forbidden,
	ErrStoreUnavailable:     ServiceUnavailable,
	ErrFileNotSupported:     BadRequest,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}

var KindMap = map[error]string{
	ErrParamInvalid:         KindValidation,
	ErrIdentityKind:         KindValidation,
	ErrIdentityNotFound:     KindNotFound,
	ErrConversationNotFound: KindNotFound,
	ErrNotParticipant:       KindForbidden,
	ErrCallFull:             KindCapacityExceeded,
	ErrNotInCall:            KindForbidden,
	ErrStoreUnavailable:     KindStoreUnavailable,
	ErrFileNotSupported:     KindValidation,
	UnauthorizedError:       KindForbidden,
}

// HTTPCode 按 errors.Is 查找业务码
func HTTPCode(err error) (int, bool) {
	for target, code := range ErrorMap {
		if errors.Is(err, target) {
			return code, true
		}
	}
	return InternalServerError, false
}

// AckKind 将事件处理错误映射为回执类型与提示
func AckKind(err error) (string, string) {
	for target, kind := range KindMap {
		if errors.Is(err, target) {
			return kind, err.Error()
		}
	}
	return KindInternal, UnExpectedError.Error()
}
