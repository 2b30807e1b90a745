package temu

import (
	"errors"
	"fmt"
)

// ==================== 错误分类 ====================

// TransportError 传输层错误（超时、连接失败、5xx）
// 这类错误客户端内部会退避重试，重试耗尽后才抛给调用方
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("传输错误: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError 业务错误（网关返回 success=false）
// 永远不自动重试，由调用方按错误码分类处理
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("业务错误 [%d]: %s", e.Code, e.Message)
}

// authErrorCodes 需要重新授权的错误码（token 失效/权限被收回）
// 命中后应停掉整个同步并把店铺标记为待授权
var authErrorCodes = map[int]bool{
	2000000: true, // access token 无效
	2000001: true, // access token 过期
	3000000: true, // app 无接口权限
}

// IsAuthError 是否为需要重新授权的业务错误
func IsAuthError(err error) bool {
	var be *BusinessError
	if errors.As(err, &be) {
		return authErrorCodes[be.Code]
	}
	return false
}

// IsBusinessError 是否为业务错误（可按条目跳过）
func IsBusinessError(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// IsTransportError 是否为重试耗尽后的传输错误
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
