package generate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/model"
)

// fallbackIndent 为兜底文档中对象右花括号的缩进。
const fallbackIndent = "    "

// Render 生成完整文档：template 中存在同名对象时只替换其区间，
// template 为空时生成兜底文档。
func Render(kind model.Kind, f jsobj.Fields, template string) (string, error) {
	marker := extract.Marker(kind)
	if marker == "" {
		return "", fmt.Errorf("render: unknown kind %q", kind)
	}
	if strings.TrimSpace(template) == "" {
		return fallback(kind, marker, f), nil
	}
	span, err := jsobj.Locate(template, marker)
	if err != nil {
		return "", fmt.Errorf("render %s into template: %w", marker, err)
	}
	text := jsobj.Marshal(f, jsobj.LineIndent(template, span.Start))
	return template[:span.Start] + text + template[span.End:], nil
}

// Patch 只改写 updates 中的字段，其余内容与格式保持不变。
func Patch(doc string, kind model.Kind, updates jsobj.Fields) (string, []string, error) {
	marker := extract.Marker(kind)
	if marker == "" {
		return "", nil, fmt.Errorf("patch: unknown kind %q", kind)
	}
	return jsobj.Patch(doc, marker, updates)
}

// IsTemplateMissing 判断错误是否由模板中缺少对象引起。
func IsTemplateMissing(err error) bool {
	return errors.Is(err, jsobj.ErrMarkerNotFound)
}

func fallback(kind model.Kind, marker string, f jsobj.Fields) string {
	title := field(f, "name")
	if kind == model.KindArticle {
		title = field(f, "title")
	}
	if title == "" {
		title = "Untitled"
	}
	heading := title
	if ign := field(f, "ign"); kind == model.KindPlayer && ign != "" {
		heading = ign
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("    <meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&b, "    <title>%s - BAMACO</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "    <h1>%s</h1>\n", html.EscapeString(heading))
	b.WriteString("    <div id=\"app\"></div>\n")
	b.WriteString("    <script>\n")
	fmt.Fprintf(&b, "    const %s = %s;\n", marker, jsobj.Marshal(f, fallbackIndent))
	b.WriteString("    </script>\n</body>\n</html>\n")
	return b.String()
}

func field(f jsobj.Fields, key string) string {
	v, _ := f.Get(key)
	s, _ := v.(string)
	return s
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_]`)

// SafeName 由名字生成文件名主干：小写，空格转下划线，去掉其他字符。
func SafeName(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	return unsafeName.ReplaceAllString(s, "")
}
