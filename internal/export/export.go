// 包 export 负责将聚合结果写为 data.json（前端直接读取）。
// data.json 是可随时重建的派生产物，编辑入口一律写回 HTML 文档。
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"bamaco-content/internal/generate"
	"bamaco-content/internal/model"
)

// Summarize 填充 featured（评分最高的玩家）与 latest（最新的文章）id 列表。
// players/articles 须已排序。
func Summarize(e *model.Export, featured, latest int) {
	e.Featured = make([]string, 0, featured)
	for i := 0; i < len(e.Players) && i < featured; i++ {
		e.Featured = append(e.Featured, e.Players[i].ID)
	}
	e.Latest = make([]string, 0, latest)
	for i := 0; i < len(e.Articles) && i < latest; i++ {
		e.Latest = append(e.Latest, e.Articles[i].ID)
	}
}

// Encode 以两空格缩进写出 JSON；非 ASCII 与 HTML 字符原样保留。
func Encode(w io.Writer, e model.Export) error {
	if e.Players == nil {
		e.Players = []model.Player{}
	}
	if e.Guilds == nil {
		e.Guilds = []model.Guild{}
	}
	if e.Articles == nil {
		e.Articles = []model.Article{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(e)
}

// ToJSON 原子写入 path。
func ToJSON(path string, e model.Export) error {
	var buf bytes.Buffer
	if err := Encode(&buf, e); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	if err := generate.WriteAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FromJSON 读取已有的 data.json。
func FromJSON(path string) (model.Export, error) {
	var e model.Export
	b, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode %s: %w", path, err)
	}
	return e, nil
}
