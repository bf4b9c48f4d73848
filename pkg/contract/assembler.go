package contract

import "context"

// Assembler: 将各阶段输出聚合为只读 AnalysisReport。
// 约束：
//  1. 纯聚合，不做数值计算之外的推导（最终常数取最大有效数量级的点）；
//  2. 输出与输入不共享底层切片；
//  3. 记录按 K 严格升序、窗口按 Top 严格升序、收敛点按 Magnitude 严格升序，违例返回 ErrInvariantViolation。
type Assembler interface {
	Assemble(ctx context.Context, parts ReportParts) (AnalysisReport, error)
}
