// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
// 加载前先读取 .env，YAML 中的 ${VAR} 会按环境变量展开。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bamaco-content/internal/model"
)

type Config struct {
	Content     Content     `yaml:"CONTENT"`
	Output      string      `yaml:"OUTPUT"`
	Articles    Articles    `yaml:"ARTICLES"`
	Maimai      Maimai      `yaml:"MAIMAI"`
	Database    Database    `yaml:"DATABASE"`
	Concurrency Concurrency `yaml:"CONCURRENCY"`
	Proxy       Proxy       `yaml:"PROXY"`
	Server      Server      `yaml:"SERVER"`
	Rules       string      `yaml:"RULES"`  // rules.yaml 路径，可选
	Preset      string      `yaml:"PRESET"` // 旧版页面预设名
	LogLevel    string      `yaml:"LOG_LEVEL"`
	LogFormat   string      `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale   string      `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor    string      `yaml:"LOG_COLOR"`  // auto|always|never
}

// Content 描述文档目录与各类别的模板文件名（模板不参与扫描）。
type Content struct {
	Root            string `yaml:"root"`
	Players         string `yaml:"players"`
	Guilds          string `yaml:"guilds"`
	Articles        string `yaml:"articles"`
	PlayerTemplate  string `yaml:"player_template"`
	GuildTemplate   string `yaml:"guild_template"`
	ArticleTemplate string `yaml:"article_template"`
}

type Articles struct {
	// UnparsedDates：日期无法解析时的排序位置，newest（视为当前时间）或 oldest
	UnparsedDates string `yaml:"unparsed_dates"`
	Featured      int    `yaml:"featured"`
	Latest        int    `yaml:"latest"`
}

type Maimai struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Retry       int           `yaml:"retry"`
	BatchSize   int           `yaml:"batch_size"`
	StrictCodes bool          `yaml:"strict_codes"` // 仅接受 15 位好友码
	UserAgent   string        `yaml:"user_agent"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite (default)
	DSN  string `yaml:"dsn"`  // ./bamaco.db
}

type Concurrency struct {
	Extract int `yaml:"extract"`
	Retry   int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	// Load 读取 .env 与 YAML，展开环境变量后反序列化为 Config，并进行校验与默认值填充。
	_ = godotenv.Load()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default 返回只含默认值的配置，用于没有 settings.yaml 的场景。
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	if c.Content.Root == "" {
		c.Content.Root = "."
	}
	if c.Content.Players == "" {
		c.Content.Players = "players"
	}
	if c.Content.Guilds == "" {
		c.Content.Guilds = "guilds"
	}
	if c.Content.Articles == "" {
		c.Content.Articles = "articles"
	}
	if c.Content.PlayerTemplate == "" {
		c.Content.PlayerTemplate = "playerprofiletemplate.html"
	}
	if c.Content.GuildTemplate == "" {
		c.Content.GuildTemplate = "guildtemplate.html"
	}
	if c.Content.ArticleTemplate == "" {
		c.Content.ArticleTemplate = "articletemplate.html"
	}
	if c.Output == "" {
		c.Output = "data.json"
	}
	switch strings.ToLower(c.Articles.UnparsedDates) {
	case "":
		c.Articles.UnparsedDates = "newest"
	case "newest", "oldest":
		c.Articles.UnparsedDates = strings.ToLower(c.Articles.UnparsedDates)
	default:
		return fmt.Errorf("ARTICLES.unparsed_dates must be newest or oldest, got %q", c.Articles.UnparsedDates)
	}
	if c.Articles.Featured < 0 || c.Articles.Latest < 0 {
		return errors.New("ARTICLES.featured/latest must be >= 0")
	}
	if c.Articles.Featured == 0 {
		c.Articles.Featured = 3
	}
	if c.Articles.Latest == 0 {
		c.Articles.Latest = 3
	}
	if c.Maimai.BaseURL == "" {
		c.Maimai.BaseURL = "https://maimai-data-get.onrender.com"
	}
	c.Maimai.BaseURL = strings.TrimRight(c.Maimai.BaseURL, "/")
	if c.Maimai.Timeout <= 0 {
		c.Maimai.Timeout = 30 * time.Second
	}
	if c.Maimai.Retry < 0 {
		return errors.New("MAIMAI.retry must be >= 0")
	}
	if c.Maimai.Retry == 0 {
		c.Maimai.Retry = 3
	}
	if c.Maimai.BatchSize == 0 {
		c.Maimai.BatchSize = 10
	}
	if c.Maimai.BatchSize < 1 || c.Maimai.BatchSize > 10 {
		return fmt.Errorf("MAIMAI.batch_size must be within 1..10, got %d", c.Maimai.BatchSize)
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./bamaco.db"
	}
	if c.Concurrency.Extract <= 0 {
		c.Concurrency.Extract = 8
	}
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 2
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// Dir 返回某类文档所在目录。
func (c *Config) Dir(kind model.Kind) string {
	switch kind {
	case model.KindPlayer:
		return filepath.Join(c.Content.Root, c.Content.Players)
	case model.KindGuild:
		return filepath.Join(c.Content.Root, c.Content.Guilds)
	case model.KindArticle:
		return filepath.Join(c.Content.Root, c.Content.Articles)
	}
	return c.Content.Root
}

// Template 返回某类文档的模板文件名（仅文件名）。
func (c *Config) Template(kind model.Kind) string {
	switch kind {
	case model.KindPlayer:
		return c.Content.PlayerTemplate
	case model.KindGuild:
		return c.Content.GuildTemplate
	case model.KindArticle:
		return c.Content.ArticleTemplate
	}
	return ""
}

// TemplatePath 返回模板文件的完整路径。
func (c *Config) TemplatePath(kind model.Kind) string {
	return filepath.Join(c.Dir(kind), c.Template(kind))
}

// OutputPath 返回 data.json 路径；相对路径以内容根目录为基准。
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Output) {
		return c.Output
	}
	return filepath.Join(c.Content.Root, c.Output)
}
