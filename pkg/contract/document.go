package contract

// Document: 报告的文档视图（JSON/YAML 编码用）。大整数以十进制字符串表示，
// 避免 10^1000 量级在解码端被当作浮点截断。
type Document struct {
	Primes         int             `json:"primes" yaml:"primes"`
	Target         float64         `json:"target" yaml:"target"`
	FinalConstant  float64         `json:"final_constant" yaml:"final_constant"`
	FinalMagnitude int             `json:"final_magnitude" yaml:"final_magnitude"`
	Verification   VerificationDoc `json:"verification" yaml:"verification"`
	Skipped        SkippedDoc      `json:"skipped" yaml:"skipped"`
	Constant       ConstantDoc     `json:"constant" yaml:"constant"`
	Samples        []RecordDoc     `json:"samples" yaml:"samples"`
	Windows        []WindowDoc     `json:"windows" yaml:"windows"`
	Convergence    []PointDoc      `json:"convergence" yaml:"convergence"`
	Records        []RecordDoc     `json:"records,omitempty" yaml:"records,omitempty"`
}

type VerificationDoc struct {
	From          int           `json:"from" yaml:"from"`
	To            int           `json:"to" yaml:"to"`
	Total         int           `json:"total" yaml:"total"`
	Matches       int           `json:"matches" yaml:"matches"`
	Skipped       int           `json:"skipped" yaml:"skipped"`
	Accuracy      float64       `json:"accuracy" yaml:"accuracy"`
	MismatchTotal int           `json:"mismatch_total" yaml:"mismatch_total"`
	Mismatches    []MismatchDoc `json:"mismatches" yaml:"mismatches"`
}

type MismatchDoc struct {
	K         int   `json:"k" yaml:"k"`
	Void      int64 `json:"void" yaml:"void"`
	Composite int64 `json:"composite" yaml:"composite"`
}

type SkippedDoc struct {
	Bijection   int `json:"bijection" yaml:"bijection"`
	Convergence int `json:"convergence" yaml:"convergence"`
	Precision   int `json:"precision" yaml:"precision"`
}

type ConstantDoc struct {
	MinPrime int64   `json:"min_prime" yaml:"min_prime"`
	Samples  int     `json:"samples" yaml:"samples"`
	Mean     float64 `json:"mean" yaml:"mean"`
	StdDev   float64 `json:"std_dev" yaml:"std_dev"`
	AbsError float64 `json:"abs_error" yaml:"abs_error"`
	ErrorPct float64 `json:"error_pct" yaml:"error_pct"`
}

type RecordDoc struct {
	K     int     `json:"k" yaml:"k"`
	Prime int64   `json:"prime" yaml:"prime"`
	Void  int64   `json:"void" yaml:"void"`
	Sum   int64   `json:"sum" yaml:"sum"`
	Ratio float64 `json:"ratio" yaml:"ratio"`
}

type WindowDoc struct {
	Top      int     `json:"top" yaml:"top"`
	From     int     `json:"from" yaml:"from"`
	To       int     `json:"to" yaml:"to"`
	Count    int     `json:"count" yaml:"count"`
	AvgPrime float64 `json:"avg_prime" yaml:"avg_prime"`
	Constant float64 `json:"constant" yaml:"constant"`
	ErrorPct float64 `json:"error_pct" yaml:"error_pct"`
}

type PointDoc struct {
	Magnitude     int     `json:"magnitude" yaml:"magnitude"`
	Prime         string  `json:"prime" yaml:"prime"`
	Index         string  `json:"index" yaml:"index"`
	Void          string  `json:"void" yaml:"void"`
	Sum           string  `json:"sum" yaml:"sum"`
	Constant      float64 `json:"constant" yaml:"constant"`
	AbsError      float64 `json:"abs_error" yaml:"abs_error"`
	ErrorPct      float64 `json:"error_pct" yaml:"error_pct"`
	Derivation    string  `json:"derivation" yaml:"derivation"`
	Backend       string  `json:"backend" yaml:"backend"`
	LowConfidence bool    `json:"low_confidence" yaml:"low_confidence"`
}

// Document 构建文档视图；withRecords 为 false 时省略全量记录。
func (r AnalysisReport) Document(withRecords bool) Document {
	d := Document{
		Primes:         r.Primes,
		Target:         r.Target,
		FinalConstant:  r.FinalConstant,
		FinalMagnitude: r.FinalMagnitude,
		Verification: VerificationDoc{
			From:          r.Verification.From,
			To:            r.Verification.To,
			Total:         r.Verification.Total,
			Matches:       r.Verification.Matches,
			Skipped:       r.Verification.Skipped,
			Accuracy:      r.Verification.Accuracy,
			MismatchTotal: r.Verification.MismatchTotal,
			Mismatches:    []MismatchDoc{},
		},
		Skipped: SkippedDoc(r.Skipped),
		Constant: ConstantDoc{
			MinPrime: r.Constant.MinPrime,
			Samples:  r.Constant.Samples,
			Mean:     r.Constant.Mean,
			StdDev:   r.Constant.StdDev,
			AbsError: r.Constant.AbsError,
			ErrorPct: r.Constant.RelError,
		},
		Samples:     recordDocs(r.Samples),
		Windows:     make([]WindowDoc, 0, len(r.Windows)),
		Convergence: make([]PointDoc, 0, len(r.Convergence)),
	}
	for _, m := range r.Verification.Mismatches {
		d.Verification.Mismatches = append(d.Verification.Mismatches, MismatchDoc(m))
	}
	for _, w := range r.Windows {
		d.Windows = append(d.Windows, WindowDoc{
			Top: w.Top, From: w.From, To: w.To, Count: w.Count,
			AvgPrime: w.AvgPrime, Constant: w.Constant, ErrorPct: w.RelError,
		})
	}
	for _, p := range r.Convergence {
		d.Convergence = append(d.Convergence, PointDoc{
			Magnitude:     p.Magnitude,
			Prime:         bigString(p.P),
			Index:         bigString(p.K),
			Void:          bigString(p.V),
			Sum:           bigString(p.S),
			Constant:      p.C,
			AbsError:      p.AbsError,
			ErrorPct:      p.RelError,
			Derivation:    string(p.Derivation),
			Backend:       p.Backend,
			LowConfidence: p.LowConfidence,
		})
	}
	if withRecords {
		d.Records = recordDocs(r.Records)
	}
	return d
}

func recordDocs(in []LayerRecord) []RecordDoc {
	out := make([]RecordDoc, 0, len(in))
	for _, r := range in {
		out = append(out, RecordDoc{K: r.K, Prime: r.P, Void: r.V, Sum: r.S, Ratio: r.Ratio})
	}
	return out
}
