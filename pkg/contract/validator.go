package contract

import (
	"fmt"
	"math/big"
)

// 校验库函数（纯函数，无 I/O）：
// - ValidateRecords:  K 严格升序，V+S=P，0 <= V < P
// - ValidateWindows:  Top 严格升序，From <= To
// - ValidatePoints:   Magnitude 严格升序，P/V/S 非空且 V+S=P，误差非负
// 违例统一包装 ErrInvariantViolation。
func ValidateRecords(recs []LayerRecord) error {
	prev := 0
	for i, r := range recs {
		if i > 0 && r.K <= prev {
			return fmt.Errorf("%w: record k=%d after k=%d", ErrInvariantViolation, r.K, prev)
		}
		if r.V+r.S != r.P {
			return fmt.Errorf("%w: k=%d V+S != P (%d+%d != %d)", ErrInvariantViolation, r.K, r.V, r.S, r.P)
		}
		if r.V < 0 || r.S <= 0 {
			return fmt.Errorf("%w: k=%d void %d out of [0,P)", ErrInvariantViolation, r.K, r.V)
		}
		prev = r.K
	}
	return nil
}

func ValidateWindows(ws []WindowStat) error {
	for i, w := range ws {
		if w.From > w.To {
			return fmt.Errorf("%w: window %d from %d > to %d", ErrInvariantViolation, w.Top, w.From, w.To)
		}
		if i > 0 && w.Top <= ws[i-1].Top {
			return fmt.Errorf("%w: window %d after %d", ErrInvariantViolation, w.Top, ws[i-1].Top)
		}
	}
	return nil
}

func ValidatePoints(ps []ConvergencePoint) error {
	for i, p := range ps {
		if i > 0 && p.Magnitude <= ps[i-1].Magnitude {
			return fmt.Errorf("%w: magnitude %d after %d", ErrInvariantViolation, p.Magnitude, ps[i-1].Magnitude)
		}
		if p.P == nil || p.V == nil || p.S == nil {
			return fmt.Errorf("%w: magnitude %d missing values", ErrInvariantViolation, p.Magnitude)
		}
		if new(big.Int).Add(p.V, p.S).Cmp(p.P) != 0 {
			return fmt.Errorf("%w: magnitude %d V+S != P", ErrInvariantViolation, p.Magnitude)
		}
		if p.AbsError < 0 || p.RelError < 0 {
			return fmt.Errorf("%w: magnitude %d negative error", ErrInvariantViolation, p.Magnitude)
		}
	}
	return nil
}
