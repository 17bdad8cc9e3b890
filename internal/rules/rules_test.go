package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRules_GetPreset(t *testing.T) {
	r := &Rules{Presets: map[string]Preset{
		"Default": {Guild: &GuildPage{Name: ".i"}},
		"bmc3":    {Article: &ArticlePage{Title: "h2.t"}},
	}}
	p := r.GetPreset("")
	if p.Guild == nil || p.Guild.Name != ".i" {
		t.Fatalf("default fallback failed: %+v", p.Guild)
	}
	// 未配置的选择器由内置预设补齐
	if p.Guild.StatLabel != ".stat-label" || p.Article == nil || p.Article.Title == "" {
		t.Fatalf("defaults not merged: %+v %+v", p.Guild, p.Article)
	}
	p2 := r.GetPreset("BMC3")
	if p2.Article.Title != "h2.t" || p2.Article.Content != ".article-content" {
		t.Fatalf("case-insensitive lookup failed: %+v", p2.Article)
	}
	var empty *Rules
	if p3 := empty.GetPreset("x"); p3.Guild == nil || p3.Guild.Name != "title" {
		t.Fatalf("nil rules should give built-in preset")
	}
}

func TestRules_Load(t *testing.T) {
	f := filepath.Join(t.TempDir(), "rules.yaml")
	_ = os.WriteFile(f, []byte("default:\n  article:\n    author: .byline\n    author_prefix: 'Written by '\n"), 0644)
	r, err := Load(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := r.GetPreset("default").Article
	if a.Author != ".byline" || a.AuthorPrefix != "Written by " || a.Date == "" {
		t.Fatalf("unexpected article preset: %+v", a)
	}
}

func TestWithDefaults_FillsWithoutTouchingInput(t *testing.T) {
	in := Preset{Guild: &GuildPage{Name: "h1.custom"}}
	out, err := withDefaults(in)
	if err != nil {
		t.Fatalf("withDefaults: %v", err)
	}
	if out.Guild.Name != "h1.custom" || out.Guild.Motto == "" || out.Article == nil {
		t.Fatalf("defaults not merged: %+v %+v", out.Guild, out.Article)
	}
	if in.Guild.Motto != "" {
		t.Fatalf("input preset mutated: %+v", in.Guild)
	}
}
