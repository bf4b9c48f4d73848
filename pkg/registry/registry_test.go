package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"primelayer/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	unknown := json.RawMessage(`{"x":1}`)
	t.Run("generator", func(t *testing.T) {
		if _, err := Generator["segmented"](json.RawMessage(`{"segment_size":4096}`)); err != nil {
			t.Fatalf("generator: %v", err)
		}
		if _, err := Generator["segmented"](unknown); err == nil {
			t.Fatalf("generator 未对未知字段报错")
		}
	})
	t.Run("void", func(t *testing.T) {
		r, err := VoidRule["endpoint"](json.RawMessage(`{"base_layer":3}`))
		if err != nil || r.Name() != "endpoint" {
			t.Fatalf("void: %v", err)
		}
		if _, err := VoidRule["endpoint"](unknown); err == nil {
			t.Fatalf("void 未对未知字段报错")
		}
	})
	t.Run("numeric", func(t *testing.T) {
		for _, name := range []string{"float64", "bigfloat", "auto"} {
			n, err := Numeric[name](nil)
			if err != nil || n.Name() != name {
				t.Fatalf("numeric %s: %v", name, err)
			}
			if _, err := Numeric[name](unknown); err == nil {
				t.Fatalf("numeric %s 未对未知字段报错", name)
			}
		}
		for _, name := range []string{"float64", "bigfloat", "auto"} {
			if _, err := Numeric[name](json.RawMessage(`{"prec":512}`)); err != nil {
				t.Fatalf("%s prec: %v", name, err)
			}
		}
	})
	t.Run("sampler", func(t *testing.T) {
		if _, err := Sampler["sliding"](json.RawMessage(`{"tops":[10,20],"fraction":0.5}`)); err != nil {
			t.Fatalf("sampler: %v", err)
		}
		if _, err := Sampler["sliding"](unknown); err == nil {
			t.Fatalf("sampler 未对未知字段报错")
		}
	})
	t.Run("assembler", func(t *testing.T) {
		if _, err := Assembler["report"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("assembler: %v", err)
		}
		if _, err := Assembler["report"](json.RawMessage(`{"final":"mean"}`)); err == nil {
			t.Fatalf("assembler 未对未知字段报错")
		}
	})
	t.Run("encoder", func(t *testing.T) {
		for _, name := range []string{"csv", "json", "yaml"} {
			if _, err := Encoder[name](nil); err != nil {
				t.Fatalf("encoder %s: %v", name, err)
			}
			if _, err := Encoder[name](unknown); err == nil {
				t.Fatalf("encoder %s 未对未知字段报错", name)
			}
		}
		if _, err := Encoder["csv"](json.RawMessage(`{"tables":["nope"]}`)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("csv 未按预期报错: %v", err)
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		raw := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		if _, err := Writer["fs"](raw); err != nil {
			t.Fatalf("writer: %v", err)
		}
		bad := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp)))
		if _, err := Writer["fs"](bad); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
		if _, err := Writer["fs"](json.RawMessage(`{}`)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("writer 缺少 output_dir 应报错: %v", err)
		}
	})
}

func TestEncoderForExt(t *testing.T) {
	cases := map[string]string{"json": "json", "yml": "yaml", "yaml": "yaml", "csv": "csv", "": "csv", "txt": "csv"}
	for ext, want := range cases {
		if got := EncoderForExt(ext); got != want {
			t.Fatalf("EncoderForExt(%q) = %q, want %q", ext, got, want)
		}
	}
}
