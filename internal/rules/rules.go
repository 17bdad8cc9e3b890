// 包 rules 负责加载并提供旧版页面的解析规则（rules.yaml），
// 以预设名（如 default/bmc3）组织 CSS 选择器，用于没有内嵌对象的公会页/文章页。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"bamaco-content/internal/logx"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个站点版本的解析规则集合。
type Preset struct {
	Guild   *GuildPage   `yaml:"guild"`
	Article *ArticlePage `yaml:"article"`
}

// GuildPage 描述旧版公会页的选择器：
// - name/motto/description：取文本或属性（支持 a@href / img@src）
// - stat_label/stat_value：统计标签及其紧随的数值
// - achievement：每个成就条目容器，icon/ach_name/ach_description 在条目内取值
type GuildPage struct {
	Name           string `yaml:"name"`
	Motto          string `yaml:"motto"`
	Description    string `yaml:"description"`
	Logo           string `yaml:"logo"`
	StatLabel      string `yaml:"stat_label"`
	StatValue      string `yaml:"stat_value"`
	Achievement    string `yaml:"achievement"`
	Icon           string `yaml:"icon"`
	AchName        string `yaml:"ach_name"`
	AchDescription string `yaml:"ach_description"`
}

// ArticlePage 描述旧版文章页的选择器。AuthorPrefix 会从作者文本前剥离（如 "By "）。
type ArticlePage struct {
	Title        string `yaml:"title"`
	Category     string `yaml:"category"`
	Author       string `yaml:"author"`
	AuthorPrefix string `yaml:"author_prefix"`
	Date         string `yaml:"date"`
	Content      string `yaml:"content"`
}

// Default 返回内置预设，对应站点早期的手写页面结构。
func Default() Preset {
	return Preset{
		Guild: &GuildPage{
			Name:           "title",
			Motto:          "p.profile-role",
			Description:    `h3.section-title:contains("About") + .card p||.guild-description`,
			Logo:           ".guild-logo img@src||.profile-avatar img@src",
			StatLabel:      ".stat-label",
			StatValue:      ".stat-value",
			Achievement:    ".achievement-badge",
			Icon:           ".achievement-icon",
			AchName:        ".achievement-name",
			AchDescription: ".achievement-description",
		},
		Article: &ArticlePage{
			Title:        "h1.article-title||h1",
			Category:     ".article-category",
			Author:       ".article-author",
			AuthorPrefix: "By ",
			Date:         ".article-date||time@datetime",
			Content:      ".article-content",
		},
	}
}

func Load(path string) (*Rules, error) {
	// 从文件加载 YAML 到 Rules.Presets
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	for name, p := range r.Presets {
		if _, err := withDefaults(p); err != nil {
			return nil, fmt.Errorf("preset %s in %s: %w", name, path, err)
		}
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
// 预设中未填写的选择器由内置默认值补齐。
func (r *Rules) GetPreset(name string) Preset {
	p, ok := r.lookup(name)
	if !ok {
		return Default()
	}
	full, err := withDefaults(p)
	if err != nil {
		logx.Warnf("预设 %s 补齐默认值失败，改用内置预设：%v", name, err)
		return Default()
	}
	return full
}

func (r *Rules) lookup(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	// 不区分大小写匹配
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}

func withDefaults(p Preset) (Preset, error) {
	def := Default()
	if p.Guild == nil {
		p.Guild = def.Guild
	} else {
		g := *p.Guild
		if err := mergo.Merge(&g, *def.Guild); err != nil {
			return p, fmt.Errorf("merge guild defaults: %w", err)
		}
		p.Guild = &g
	}
	if p.Article == nil {
		p.Article = def.Article
	} else {
		a := *p.Article
		if err := mergo.Merge(&a, *def.Article); err != nil {
			return p, fmt.Errorf("merge article defaults: %w", err)
		}
		p.Article = &a
	}
	return p, nil
}
