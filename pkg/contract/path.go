package contract

import (
	"path"
	"strings"
)

// NormalizeArtifactID 规范化导出路径，统一为跨平台稳定的 ArtifactID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeArtifactID(p string) ArtifactID {
	s := strings.ReplaceAll(p, "\\", "/")
	return ArtifactID(path.Clean(s))
}

// SplitExport 将导出路径拆为目录与基名（去掉扩展名），以及小写扩展名（不含点）。
// 例如 "out/data.csv" => ("out", "data", "csv")。
func SplitExport(p string) (dir, base, ext string) {
	id := string(NormalizeArtifactID(p))
	dir = path.Dir(id)
	name := path.Base(id)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		ext = strings.ToLower(name[i+1:])
		name = name[:i]
	}
	return dir, name, ext
}
