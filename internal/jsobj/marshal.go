package jsobj

import (
	"fmt"
	"strconv"
	"strings"
)

// Template 以反引号输出的多行字符串。
type Template string

// Raw 原样输出的字面量文本。
type Raw string

// KV 为有序键值对，Comment 输出为行尾注释。Key 为空时输出为独占一行的分节注释。
type KV struct {
	Key     string
	Value   any
	Comment string
}

// Fields 为有序对象。
type Fields []KV

// Get 返回第一个同名键的值。
func (f Fields) Get(key string) (any, bool) {
	for _, kv := range f {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// DefaultIndent 为缩进单位。
const DefaultIndent = "  "

// Marshal 将 Fields 序列化为对象字面量。base 为右花括号所在行的缩进，
// 字段位于 base+DefaultIndent；首个 { 不带缩进，由调用方放在 "= " 之后。
func Marshal(f Fields, base string) string {
	var b strings.Builder
	writeObject(&b, f, base)
	return b.String()
}

func writeObject(b *strings.Builder, f Fields, base string) {
	if len(f) == 0 {
		b.WriteString("{}")
		return
	}
	inner := base + DefaultIndent
	b.WriteString("{\n")
	for i, kv := range f {
		if kv.Key == "" {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(inner)
			b.WriteString("// ")
			b.WriteString(strings.ReplaceAll(kv.Comment, "\n", " "))
			b.WriteByte('\n')
			continue
		}
		b.WriteString(inner)
		b.WriteString(formatKey(kv.Key))
		b.WriteString(": ")
		writeValue(b, kv.Value, inner)
		b.WriteByte(',')
		if kv.Comment != "" {
			b.WriteString(" // ")
			b.WriteString(strings.ReplaceAll(kv.Comment, "\n", " "))
		}
		b.WriteByte('\n')
	}
	b.WriteString(base)
	b.WriteByte('}')
}

// Literal 返回单个值的字面量文本。
func Literal(v any, base string) string {
	var b strings.Builder
	writeValue(&b, v, base)
	return b.String()
}

func writeValue(b *strings.Builder, v any, base string) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(Quote(x, '\''))
	case Template:
		b.WriteString(QuoteTemplate(string(x)))
	case Raw:
		b.WriteString(string(x))
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case Fields:
		writeObject(b, x, base)
	case []Fields:
		if len(x) == 0 {
			b.WriteString("[]")
			return
		}
		inner := base + DefaultIndent
		b.WriteString("[\n")
		for _, item := range x {
			b.WriteString(inner)
			writeObject(b, item, inner)
			b.WriteString(",\n")
		}
		b.WriteString(base)
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, s := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Quote(s, '\''))
		}
		b.WriteByte(']')
	default:
		b.WriteString(Quote(fmt.Sprint(x), '\''))
	}
}

func formatKey(k string) string {
	if k == "" {
		return "''"
	}
	if isIdentStart(k[0]) && k[0] < 0x80 {
		ok := true
		for i := 1; i < len(k); i++ {
			if !isIdentPart(k[i]) || k[i] >= 0x80 {
				ok = false
				break
			}
		}
		if ok {
			return k
		}
	}
	return Quote(k, '\'')
}

// Quote 以 q 为引号输出字符串字面量，转义引号、反斜杠、控制字符与 </script。
func Quote(s string, q byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == q:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '<' && closesScript(s[i:]):
			b.WriteString(`<\/`)
			i++
		case c < 0x20:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// QuoteTemplate 输出反引号字符串，换行与标记原样保留。
func QuoteTemplate(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('`')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '`':
			b.WriteString("\\`")
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			b.WriteString(`\$`)
		case c == '<' && closesScript(s[i:]):
			b.WriteString(`<\/`)
			i++
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('`')
	return b.String()
}

func closesScript(s string) bool {
	return len(s) >= 8 && s[1] == '/' && strings.EqualFold(s[2:8], "script")
}
