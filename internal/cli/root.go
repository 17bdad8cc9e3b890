// 包 cli 定义命令行（cobra）：
// - build/stats/patch/generate：文档 → data.json 与文档编辑
// - refresh/profile/check-code：统计 API 相关
// - import-feed/migrate/serve：订阅导入、本地快照与编辑 API
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bamaco-content/internal/aggregate"
	"bamaco-content/internal/config"
	"bamaco-content/internal/export"
	"bamaco-content/internal/extract"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
	"bamaco-content/internal/rules"
)

// app 为各子命令共享的运行时状态，在 PersistentPreRunE 中初始化。
type app struct {
	configPath string
	rulesPath  string
	logLevel   string

	cfg    *config.Config
	rules  *rules.Rules
	runner *aggregate.Runner
}

func newRoot() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bamaco",
		Short:         "bamaco manages the community site's player, guild and article documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "settings.yaml", "path to settings.yaml")
	pf.StringVar(&a.rulesPath, "rules", "", "path to rules.yaml with legacy markup presets (optional, overrides RULES)")
	pf.StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		a.buildCmd(),
		a.statsCmd(),
		a.patchCmd(),
		a.generateCmd(),
		a.refreshCmd(),
		a.profileCmd(),
		a.checkCodeCmd(),
		a.importFeedCmd(),
		a.migrateCmd(),
		a.serveCmd(),
	)
	return root
}

// Execute 运行命令行；收到 SIGINT/SIGTERM 时取消 ctx。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	case err != nil:
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	logx.Init(logx.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Locale: cfg.LogLocale, Color: cfg.LogColor})
	if err != nil {
		logx.Debugf("未找到 %s，使用默认配置", a.configPath)
	}

	path := a.rulesPath
	if path == "" {
		path = cfg.Rules
	}
	if path != "" {
		rl, err := rules.Load(path)
		if err != nil {
			return err
		}
		a.rules = rl
	}
	a.cfg = cfg
	a.runner = aggregate.New(cfg, extract.New(a.rules.GetPreset(cfg.Preset)))
	return nil
}

// rebuild 聚合全部文档并写出 data.json。
func (a *app) rebuild(ctx context.Context) (model.Export, *model.Report, error) {
	out, rep, err := a.runner.Build(ctx)
	if err != nil {
		return out, rep, err
	}
	if err := export.ToJSON(a.cfg.OutputPath(), out); err != nil {
		return out, rep, err
	}
	logx.Infof("已写出 %s：玩家=%d 公会=%d 文章=%d", a.cfg.OutputPath(), len(out.Players), len(out.Guilds), len(out.Articles))
	return out, rep, nil
}

func (a *app) maimaiClient() (*maimai.Client, error) {
	m := a.cfg.Maimai
	return maimai.New(maimai.Options{
		BaseURL:    m.BaseURL,
		Timeout:    m.Timeout,
		Retry:      m.Retry,
		Strict:     m.StrictCodes,
		UserAgent:  m.UserAgent,
		ProxyHTTP:  a.cfg.Proxy.HTTP,
		ProxyHTTPS: a.cfg.Proxy.HTTPS,
	})
}

// template 读取某类文档的模板；模板不存在时返回空串（生成兜底文档）。
func (a *app) template(kind model.Kind) (string, error) {
	b, err := os.ReadFile(a.cfg.TemplatePath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		logx.Warnf("模板不存在，将生成兜底文档：%s", a.cfg.TemplatePath(kind))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(b), nil
}

func parseKind(s string) (model.Kind, error) {
	switch model.Kind(s) {
	case model.KindPlayer, model.KindGuild, model.KindArticle:
		return model.Kind(s), nil
	case "player":
		return model.KindPlayer, nil
	case "guild":
		return model.KindGuild, nil
	case "article":
		return model.KindArticle, nil
	}
	return "", fmt.Errorf("unknown kind %q (players|guilds|articles)", s)
}
