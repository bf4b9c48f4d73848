package contract

import "errors"

// 最小错误分类（哨兵）；调用方以 errors.Is 判定，附加信息通过 %w 包装。
var (
	// ErrInvalidInput: 请求参数非法（如 k_min > k_max、负数数量）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientRange: 当前筛选区间内素数不足；生成器内部扩展区间后重试，不向外暴露。
	ErrInsufficientRange = errors.New("insufficient range")
	// ErrUndefinedIndex: 索引无定义（k-3 < 1、越界，或 P 过小使 ln(ln(P)) <= 0）。
	// 聚合统计中按跳过计数，不算失败。
	ErrUndefinedIndex = errors.New("undefined index")
	// ErrPrecisionLoss: 数值后端无法在所需精度下表示输入（非致命，按低置信或跳过处理）。
	ErrPrecisionLoss = errors.New("precision loss")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrPathInvalid: 工件标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)
