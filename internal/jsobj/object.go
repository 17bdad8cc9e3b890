package jsobj

import (
	"strconv"
	"strings"
)

// Get 返回键对应的值；重复键以最后一个为准（与 JS 语义一致）。
func (o *Object) Get(key string) *Value {
	if o == nil {
		return nil
	}
	for i := len(o.Fields) - 1; i >= 0; i-- {
		if o.Fields[i].Key == key {
			return o.Fields[i].Value
		}
	}
	return nil
}

// Has 判断键是否存在。
func (o *Object) Has(key string) bool { return o.Get(key) != nil }

// String 取标量文本；缺失或非标量返回空串。
func (o *Object) String(key string) string {
	v := o.Get(key)
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindString, KindTemplate, KindNumber, KindBool:
		return v.Text
	}
	return ""
}

// Int 取整数：裸数字或带引号的数字均可，取前导数字段；缺失返回 0。
func (o *Object) Int(key string) int {
	v := o.Get(key)
	if v == nil {
		return 0
	}
	switch v.Kind {
	case KindString, KindTemplate, KindNumber:
		return leadingInt(v.Text)
	}
	return 0
}

// Objects 返回数组中的对象元素，非对象元素忽略。
func (o *Object) Objects(key string) []*Object {
	v := o.Get(key)
	if v == nil || v.Kind != KindArray {
		return nil
	}
	out := make([]*Object, 0, len(v.Items))
	for _, it := range v.Items {
		if it.Kind == KindObject {
			out = append(out, it.Obj)
		}
	}
	return out
}

// Strings 返回数组中的字符串元素；若值本身是逗号分隔的字符串也拆开。
func (o *Object) Strings(key string) []string {
	v := o.Get(key)
	if v == nil {
		return nil
	}
	var out []string
	switch v.Kind {
	case KindArray:
		for _, it := range v.Items {
			if it.Kind == KindString || it.Kind == KindTemplate {
				if s := strings.TrimSpace(it.Text); s != "" {
					out = append(out, s)
				}
			}
		}
	case KindString:
		for _, s := range strings.Split(v.Text, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Require 仅当所有键都是非空字符串时返回它们的值。
func (o *Object) Require(keys ...string) ([]string, bool) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v := o.Get(k)
		if v == nil || (v.Kind != KindString && v.Kind != KindTemplate) {
			return nil, false
		}
		out[i] = v.Text
	}
	return out, true
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
