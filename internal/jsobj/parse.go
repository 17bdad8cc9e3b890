// 包 jsobj 解析与生成 HTML 内嵌的对象字面量（如 const PLAYER_INFO = {...}）。
// 只支持受限语法：key: 字面量，字面量可为字符串、模板字符串、数字、布尔、null、
// 数组与嵌套对象；允许尾逗号与 // /* */ 注释。每个值都记录其在原文中的字节区间，
// 供 Patch 原位改写。
package jsobj

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrMarkerNotFound 表示文档中没有 "marker = {" 形式的绑定。
var ErrMarkerNotFound = errors.New("marker not found")

const maxDepth = 64

// SyntaxError 携带出错位置。
type SyntaxError struct {
	Offset int
	Line   int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d (offset %d): %s", e.Line, e.Offset, e.Msg)
}

// Kind 为字面量类别。
type Kind int

const (
	KindString Kind = iota + 1
	KindTemplate
	KindNumber
	KindBool
	KindNull
	KindIdent
	KindArray
	KindObject
)

// Value 为一个字面量。Text 对字符串是解码后的内容，对数字/布尔/标识符是原文。
type Value struct {
	Kind  Kind
	Text  string
	Quote byte
	Items []*Value
	Obj   *Object
	Start int
	End   int
}

// Field 为对象中的一个键值对，Start 指向键的起点。
type Field struct {
	Key   string
	Start int
	Value *Value
}

// Object 为对象字面量，Start/End 覆盖从 { 到 } 的闭区间（End 为 } 之后）。
type Object struct {
	Fields []Field
	Start  int
	End    int
}

// Span 为半开区间 [Start, End)。
type Span struct {
	Start int
	End   int
}

// Find 在文档中定位 marker 绑定的对象并解析。
// 文档含 <script> 时只在脚本内查找；HTML 注释、JS 注释与字符串中的提及不算绑定。
// 某处绑定解析失败时继续尝试后面的绑定，全部失败才返回第一个语法错误。
func Find(doc, marker string) (*Object, error) {
	var first error
	sc := scanner{src: doc, inScript: !containsFold(doc, "<script")}
	for {
		at, ok := sc.next(marker)
		if !ok {
			break
		}
		p := &parser{src: doc, pos: at + len(marker)}
		if err := p.skip(); err != nil {
			continue
		}
		if !p.peek('=') || p.peekAt(1, '=') || p.peekAt(1, '>') {
			continue
		}
		p.pos++
		if err := p.skip(); err != nil || !p.peek('{') {
			continue
		}
		obj, err := p.object(0)
		if err != nil {
			if first == nil {
				first = fmt.Errorf("parse %s: %w", marker, err)
			}
			continue
		}
		return obj, nil
	}
	if first != nil {
		return nil, first
	}
	return nil, ErrMarkerNotFound
}

// scanner 逐个给出脚本代码中作为完整标识符出现的 marker，
// 跳过 HTML 注释、脚本外的标记文本、JS 注释与字符串。
type scanner struct {
	src      string
	pos      int
	inScript bool
}

func (s *scanner) next(marker string) (int, bool) {
	src := s.src
	for s.pos < len(src) {
		if !s.inScript {
			i := indexFold(src[s.pos:], "<script")
			if i < 0 {
				s.pos = len(src)
				return 0, false
			}
			// 脚本之前的 HTML 注释可能包含 "<script"
			if c := strings.Index(src[s.pos:s.pos+i], "<!--"); c >= 0 {
				s.skipPast(s.pos+c+4, "-->")
				continue
			}
			gt := strings.IndexByte(src[s.pos+i:], '>')
			if gt < 0 {
				s.pos = len(src)
				return 0, false
			}
			s.pos += i + gt + 1
			s.inScript = true
			continue
		}
		c := src[s.pos]
		switch {
		case c == '<' && hasPrefixFold(src[s.pos:], "</script"):
			s.pos += len("</script")
			s.inScript = false
		case c == '<' && strings.HasPrefix(src[s.pos:], "<!--"):
			s.skipPast(s.pos+4, "-->")
		case c == '/' && s.at(1, '/'):
			s.skipLine()
		case c == '/' && s.at(1, '*'):
			s.skipPast(s.pos+2, "*/")
		case c == '\'' || c == '"':
			s.skipString(c)
		case c == '`':
			s.skipTemplate()
		case isIdentStart(c):
			start := s.pos
			for s.pos < len(src) && isIdentPart(src[s.pos]) {
				s.pos++
			}
			if src[start:s.pos] == marker {
				return start, true
			}
		case isDigit(c):
			for s.pos < len(src) && isIdentPart(src[s.pos]) {
				s.pos++
			}
		default:
			s.pos++
		}
	}
	return 0, false
}

func (s *scanner) at(off int, c byte) bool {
	return s.pos+off < len(s.src) && s.src[s.pos+off] == c
}

func (s *scanner) skipPast(from int, end string) {
	i := strings.Index(s.src[from:], end)
	if i < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos = from + i + len(end)
}

func (s *scanner) skipLine() {
	i := strings.IndexByte(s.src[s.pos:], '\n')
	if i < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += i + 1
}

// skipString 跳到闭合引号之后；遇到换行即止。
func (s *scanner) skipString(q byte) {
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case q:
			s.pos++
			return
		case '\n':
			return
		}
		s.pos++
	}
}

func (s *scanner) skipTemplate() {
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case '`':
			s.pos++
			return
		}
		s.pos++
	}
}

// indexFold 按 ASCII 忽略大小写查找 sub（sub 须为小写），返回字节偏移。
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if (s[i] == sub[0] || s[i]+('a'-'A') == sub[0]) && hasPrefixFold(s[i:], sub) {
			return i
		}
	}
	return -1
}

func containsFold(s, sub string) bool { return indexFold(s, sub) >= 0 }

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Locate 返回 marker 对象的括号平衡区间。
func Locate(doc, marker string) (Span, error) {
	obj, err := Find(doc, marker)
	if err != nil {
		return Span{}, err
	}
	return Span{Start: obj.Start, End: obj.End}, nil
}

// ParseObject 解析以 { 开头的独立对象文本。
func ParseObject(src string) (*Object, error) {
	p := &parser{src: src}
	if err := p.skip(); err != nil {
		return nil, err
	}
	if !p.peek('{') {
		return nil, p.errf("expected '{'")
	}
	return p.object(0)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errf(format string, args ...any) error {
	pos := p.pos
	if pos > len(p.src) {
		pos = len(p.src)
	}
	return &SyntaxError{
		Offset: pos,
		Line:   1 + strings.Count(p.src[:pos], "\n"),
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (p *parser) peek(c byte) bool { return p.pos < len(p.src) && p.src[p.pos] == c }

func (p *parser) peekAt(off int, c byte) bool {
	return p.pos+off < len(p.src) && p.src[p.pos+off] == c
}

// skip 跳过空白与注释。
func (p *parser) skip() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == 0xC2 && p.peekAt(1, 0xA0): // nbsp
			p.pos += 2
		case c == '/' && p.peekAt(1, '/'):
			i := strings.IndexByte(p.src[p.pos:], '\n')
			if i < 0 {
				p.pos = len(p.src)
				return nil
			}
			p.pos += i + 1
		case c == '/' && p.peekAt(1, '*'):
			i := strings.Index(p.src[p.pos+2:], "*/")
			if i < 0 {
				return p.errf("unterminated comment")
			}
			p.pos += i + 4
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) object(depth int) (*Object, error) {
	if depth > maxDepth {
		return nil, p.errf("nesting too deep")
	}
	obj := &Object{Start: p.pos}
	p.pos++
	for {
		if err := p.skip(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated object")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			obj.End = p.pos
			return obj, nil
		}
		keyStart := p.pos
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		if err := p.skip(); err != nil {
			return nil, err
		}
		if !p.peek(':') {
			return nil, p.errf("expected ':' after key %q", key)
		}
		p.pos++
		val, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		obj.Fields = append(obj.Fields, Field{Key: key, Start: keyStart, Value: val})
		if err := p.skip(); err != nil {
			return nil, err
		}
		switch {
		case p.peek(','):
			p.pos++
		case p.peek('}'):
		default:
			return nil, p.errf("expected ',' or '}' after %q", key)
		}
	}
}

func (p *parser) key() (string, error) {
	if p.pos >= len(p.src) {
		return "", p.errf("unexpected end of input")
	}
	c := p.src[p.pos]
	switch {
	case c == '\'' || c == '"':
		return p.quoted(c)
	case isIdentStart(c):
		return p.ident(), nil
	case isDigit(c):
		return p.numberText(), nil
	}
	return "", p.errf("unexpected character %q in key", c)
}

func (p *parser) value(depth int) (*Value, error) {
	if depth > maxDepth {
		return nil, p.errf("nesting too deep")
	}
	if err := p.skip(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.src) {
		return nil, p.errf("unexpected end of input")
	}
	start := p.pos
	c := p.src[p.pos]
	switch {
	case c == '{':
		obj, err := p.object(depth)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindObject, Obj: obj, Start: start, End: p.pos}, nil
	case c == '[':
		return p.array(depth)
	case c == '\'' || c == '"':
		s, err := p.quoted(c)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindString, Text: s, Quote: c, Start: start, End: p.pos}, nil
	case c == '`':
		s, err := p.template()
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindTemplate, Text: s, Quote: '`', Start: start, End: p.pos}, nil
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		text := p.numberText()
		if text == "" || text == "-" || text == "+" || text == "." {
			return nil, p.errf("malformed number")
		}
		return &Value{Kind: KindNumber, Text: text, Start: start, End: p.pos}, nil
	case isIdentStart(c):
		id := p.ident()
		v := &Value{Kind: KindIdent, Text: id, Start: start, End: p.pos}
		switch id {
		case "true", "false":
			v.Kind = KindBool
		case "null", "undefined":
			v.Kind = KindNull
		}
		return v, nil
	}
	return nil, p.errf("unexpected character %q", c)
}

func (p *parser) array(depth int) (*Value, error) {
	v := &Value{Kind: KindArray, Start: p.pos}
	p.pos++
	for {
		if err := p.skip(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated array")
		}
		if p.src[p.pos] == ']' {
			p.pos++
			v.End = p.pos
			return v, nil
		}
		item, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		v.Items = append(v.Items, item)
		if err := p.skip(); err != nil {
			return nil, err
		}
		switch {
		case p.peek(','):
			p.pos++
		case p.peek(']'):
		default:
			return nil, p.errf("expected ',' or ']' in array")
		}
	}
}

func (p *parser) quoted(q byte) (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case q:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
		case '\n':
			return "", p.errf("newline in string literal")
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

// template 读取反引号字符串，跨行原样保留；${...} 不求值。
func (p *parser) template() (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '`':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated template literal")
}

// escape 处理反斜杠之后的字符，p.pos 指向该字符。
func (p *parser) escape(b *strings.Builder) error {
	if p.pos >= len(p.src) {
		return p.errf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\r':
		if p.peek('\n') {
			p.pos++
		}
	case '\n':
	case 'x':
		if p.pos+2 > len(p.src) {
			return p.errf("short \\x escape")
		}
		n, err := strconv.ParseUint(p.src[p.pos:p.pos+2], 16, 8)
		if err != nil {
			return p.errf("bad \\x escape")
		}
		p.pos += 2
		b.WriteRune(rune(n))
	case 'u':
		r, err := p.unicodeEscape()
		if err != nil {
			return err
		}
		b.WriteRune(r)
	default:
		b.WriteByte(c)
	}
	return nil
}

func (p *parser) unicodeEscape() (rune, error) {
	if p.peek('{') {
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return 0, p.errf("bad \\u{} escape")
		}
		n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return 0, p.errf("bad \\u{} escape")
		}
		p.pos += end + 1
		return rune(n), nil
	}
	r, err := p.hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(r) && p.peek('\\') && p.peekAt(1, 'u') {
		save := p.pos
		p.pos += 2
		if r2, err := p.hex4(); err == nil {
			if d := utf16.DecodeRune(r, r2); d != utf8.RuneError {
				return d, nil
			}
		}
		p.pos = save
	}
	return r, nil
}

func (p *parser) hex4() (rune, error) {
	if p.pos+4 > len(p.src) {
		return 0, p.errf("short \\u escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 16)
	if err != nil {
		return 0, p.errf("bad \\u escape")
	}
	p.pos += 4
	return rune(n), nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) numberText() string {
	start := p.pos
	if p.peek('-') || p.peek('+') {
		p.pos++
	}
	if p.peek('0') && (p.peekAt(1, 'x') || p.peekAt(1, 'X')) {
		p.pos += 2
		for p.pos < len(p.src) && isHex(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos]
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isDigit(c) || c == '.' || c == '_':
			p.pos++
		case c == 'e' || c == 'E':
			p.pos++
			if p.peek('-') || p.peek('+') {
				p.pos++
			}
		default:
			return p.src[start:p.pos]
		}
	}
	return p.src[start:p.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
