package domain

import (
	"errors"
	"fmt"
)

// 业务错误（直接返回给调用方，HTTP 层负责映射状态码）
var (
	// ErrNotFound 引用的实体不存在
	ErrNotFound = errors.New("entity not found")

	// ErrConstraintViolation 唯一约束/外键冲突（如 detection_id 重复），不自动重试
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidState 操作前置条件不满足（如在非 IN_PROGRESS 工单上提交凭证）
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrAlreadyReviewed 凭证已审核，不允许重复审核
	ErrAlreadyReviewed = errors.New("work proof already reviewed")

	// ErrAlreadyPromoted 检测结果已生成过坑洞
	ErrAlreadyPromoted = errors.New("detection already promoted to pothole")

	// ErrConcurrentModification 乐观锁冲突，调用方可整体重试
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidInput 请求参数校验失败
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidTransitionError 工单状态机非法迁移
type InvalidTransitionError struct {
	From TicketStatus
	To   TicketStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid ticket transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition 判断 err 是否为非法状态迁移
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
