package extract

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ExcerptLimit 为摘要的最大字符数（含省略号）。
const ExcerptLimit = 200

// 文章日期的可接受写法。
var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	time.RFC3339,
}

// ParseDate 解析文章日期；失败返回零值与 false，由调用方决定排序策略。
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Excerpt 取正文第一个 <p> 的纯文本作为摘要；正文没有段落时依次回退到
// 手写的 excerpt 与正文首个文本块。
func Excerpt(content, authored string) string {
	text := firstParagraph(content)
	if text == "" {
		text = collapse(stripTags(authored))
	}
	if text == "" {
		text = firstBlock(content)
	}
	return Truncate(text)
}

// Truncate 将超长摘要截断为 197 个字符加 "..."。
func Truncate(s string) string {
	if utf8.RuneCountInString(s) < ExcerptLimit {
		return s
	}
	r := []rune(s)
	return string(r[:ExcerptLimit-3]) + "..."
}

func firstParagraph(content string) string {
	if !strings.Contains(content, "<") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return collapse(doc.Find("p").First().Text())
}

func firstBlock(content string) string {
	for _, block := range strings.Split(content, "\n\n") {
		if s := collapse(stripTags(block)); s != "" {
			return s
		}
	}
	return ""
}

func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
