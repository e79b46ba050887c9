package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrCriticalInconsistency 外部日历已创建事件但台账写入失败，
// 产生无主的外部事件，需人工介入处理（不可静默重试）
var ErrCriticalInconsistency = errors.New("外部日历与台账状态不一致，需人工处理")
