package registry

import (
	"bytes"
	"encoding/json"

	"primelayer/pkg/contract"
	report "primelayer/plugins/assembler/report"
	ecsv "primelayer/plugins/encoder/csv"
	ejson "primelayer/plugins/encoder/json"
	eyaml "primelayer/plugins/encoder/yaml"
	narb "primelayer/plugins/numeric/arbitrary"
	nauto "primelayer/plugins/numeric/auto"
	nfix "primelayer/plugins/numeric/fixed"
	sseg "primelayer/plugins/sieve/segmented"
	vend "primelayer/plugins/void/endpoint"
	wsld "primelayer/plugins/window/sliding"
	wfs "primelayer/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewGenerator 工厂签名：接收原样 JSON Options。
type NewGenerator func(raw json.RawMessage) (contract.Generator, error)

// NewVoidRule 工厂签名：接收原样 JSON Options。
type NewVoidRule func(raw json.RawMessage) (contract.VoidRule, error)

// NewNumeric 工厂签名：接收原样 JSON Options。
type NewNumeric func(raw json.RawMessage) (contract.Numeric, error)

// NewSampler 工厂签名：接收原样 JSON Options。
type NewSampler func(raw json.RawMessage) (contract.Sampler, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Generator 工厂注册表（显式、零反射）。
var Generator = map[string]NewGenerator{
	// segmented: 分段埃氏筛，区间不足时按倍率扩展
	"segmented": func(raw json.RawMessage) (contract.Generator, error) {
		var opts sseg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sseg.New(&opts), nil
	},
}

// VoidRule 工厂注册表。
var VoidRule = map[string]NewVoidRule{
	// endpoint: 基础层 + 最小未占用端点
	"endpoint": func(raw json.RawMessage) (contract.VoidRule, error) {
		var opts vend.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return vend.New(&opts), nil
	},
}

// Numeric 工厂注册表。
var Numeric = map[string]NewNumeric{
	// float64: 双精度；P 超出 float64 范围返回 ErrPrecisionLoss。
	// 与其余后端共用选项结构，prec 在此忽略，便于只切换组件名
	"float64": func(raw json.RawMessage) (contract.Numeric, error) {
		var opts narb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return nfix.New(), nil
	},
	// bigfloat: math/big + bigfloat.Log 任意精度
	"bigfloat": func(raw json.RawMessage) (contract.Numeric, error) {
		var opts narb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return narb.New(&opts), nil
	},
	// auto: 2^53 以内双精度，之外任意精度；选项传给任意精度部分
	"auto": func(raw json.RawMessage) (contract.Numeric, error) {
		var opts narb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return nauto.New(&opts), nil
	},
}

// Sampler 工厂注册表。
var Sampler = map[string]NewSampler{
	// sliding: 以 w 结尾的 [0.9w, w] 窗口
	"sliding": func(raw json.RawMessage) (contract.Sampler, error) {
		var opts wsld.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wsld.New(&opts), nil
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// report: 无选项，任何字段均按未知字段拒绝
	"report": func(raw json.RawMessage) (contract.Assembler, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return report.New(), nil
	},
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// csv: 分解表 / 收敛表 / 窗口表
	"csv": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ecsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ecsv.New(&opts)
	},
	"json": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ejson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejson.New(&opts), nil
	},
	"yaml": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts eyaml.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return eyaml.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// EncoderForExt 按导出扩展名选择编码器名；未知扩展名回落到 csv。
func EncoderForExt(ext string) string {
	switch ext {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	default:
		return "csv"
	}
}
