package jsobj

import (
	"sort"
	"strconv"
	"strings"
)

// Splice 用 objText 替换 marker 对象的括号平衡区间，其余字节保持不变。
func Splice(doc, marker, objText string) (string, error) {
	span, err := Locate(doc, marker)
	if err != nil {
		return "", err
	}
	return doc[:span.Start] + objText + doc[span.End:], nil
}

// LineIndent 返回 pos 所在行的前导空白。
func LineIndent(doc string, pos int) string {
	ls := lineStart(doc, pos)
	end := ls
	for end < len(doc) && (doc[end] == ' ' || doc[end] == '\t') {
		end++
	}
	return doc[ls:end]
}

type edit struct {
	start int
	end   int
	text  string
	seq   int
}

// Patch 仅改写 updates 中列出的键：已存在的键只替换其值的区间（保留原引号风格），
// 缺失的键插入到对象末尾。返回新文档与实际变化的键。
func Patch(doc, marker string, updates Fields) (string, []string, error) {
	obj, err := Find(doc, marker)
	if err != nil {
		return "", nil, err
	}
	var edits []edit
	var changed []string
	var missing Fields
	for _, kv := range updates {
		if kv.Key == "" {
			continue
		}
		v := obj.Get(kv.Key)
		if v == nil {
			missing = append(missing, kv)
			continue
		}
		text := literalLike(kv.Value, v, LineIndent(doc, v.Start))
		if doc[v.Start:v.End] == text {
			continue
		}
		edits = append(edits, edit{start: v.Start, end: v.End, text: text})
		changed = append(changed, kv.Key)
	}
	if len(missing) > 0 {
		edits = append(edits, insertions(doc, obj, missing)...)
		for _, kv := range missing {
			changed = append(changed, kv.Key)
		}
	}
	if len(edits) == 0 {
		return doc, nil, nil
	}
	for i := range edits {
		edits[i].seq = i
	}
	// 从后往前应用；同一位置后加入的先应用，保证插入顺序。
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start > edits[j].start
		}
		return edits[i].seq > edits[j].seq
	})
	out := doc
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out, changed, nil
}

// literalLike 按旧值的写法输出新值：带引号的数字仍带引号，双引号串仍用双引号。
func literalLike(v any, old *Value, base string) string {
	switch old.Kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return Quote(x, old.Quote)
		case Template:
			if !strings.Contains(string(x), "\n") {
				return Quote(string(x), old.Quote)
			}
		case int:
			return Quote(strconv.Itoa(x), old.Quote)
		case int64:
			return Quote(strconv.FormatInt(x, 10), old.Quote)
		}
	case KindTemplate:
		if x, ok := v.(string); ok {
			return QuoteTemplate(x)
		}
	}
	return Literal(v, base)
}

func insertions(doc string, obj *Object, missing Fields) []edit {
	closePos := obj.End - 1
	ls := lineStart(doc, closePos)
	ownLine := strings.TrimSpace(doc[ls:closePos]) == ""
	closeIndent := LineIndent(doc, closePos)

	var edits []edit
	indent := closeIndent + DefaultIndent
	if n := len(obj.Fields); n > 0 {
		last := obj.Fields[n-1]
		if kl := lineStart(doc, last.Start); strings.TrimSpace(doc[kl:last.Start]) == "" {
			indent = doc[kl:last.Start]
		}
		if !hasTrailingComma(doc, last.Value.End) {
			edits = append(edits, edit{start: last.Value.End, end: last.Value.End, text: ","})
		}
	}

	var b strings.Builder
	if ownLine {
		for _, kv := range missing {
			b.WriteString(indent)
			b.WriteString(formatKey(kv.Key))
			b.WriteString(": ")
			writeValue(&b, kv.Value, indent)
			b.WriteString(",\n")
		}
		edits = append(edits, edit{start: ls, end: ls, text: b.String()})
		return edits
	}
	for _, kv := range missing {
		b.WriteByte(' ')
		b.WriteString(formatKey(kv.Key))
		b.WriteString(": ")
		writeValue(&b, kv.Value, closeIndent)
		b.WriteByte(',')
	}
	b.WriteByte(' ')
	edits = append(edits, edit{start: closePos, end: closePos, text: b.String()})
	return edits
}

func hasTrailingComma(doc string, pos int) bool {
	p := &parser{src: doc, pos: pos}
	if err := p.skip(); err != nil {
		return false
	}
	return p.peek(',')
}

func lineStart(doc string, pos int) int {
	if pos > len(doc) {
		pos = len(doc)
	}
	return strings.LastIndexByte(doc[:pos], '\n') + 1
}
