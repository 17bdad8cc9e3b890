package cli

import (
	"time"

	"github.com/spf13/cobra"

	"bamaco-content/internal/feeds"
	"bamaco-content/internal/fetch"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/model"
	"bamaco-content/internal/server"
	"bamaco-content/internal/store"
)

func (a *app) importFeedCmd() *cobra.Command {
	var discover, overwrite, noBuild bool
	var max int
	var author, category string
	cmd := &cobra.Command{
		Use:   "import-feed <url>",
		Short: "Import articles from an RSS/Atom/JSON feed as article documents.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl, err := fetch.New(fetch.Options{
				ProxyHTTP:  a.cfg.Proxy.HTTP,
				ProxyHTTPS: a.cfg.Proxy.HTTPS,
				Timeout:    25 * time.Second,
				Retry:      a.cfg.Concurrency.Retry,
			})
			if err != nil {
				return err
			}
			feedURL := args[0]
			if discover {
				if feedURL, err = feeds.Discover(ctx, cl, feedURL); err != nil {
					return err
				}
				logx.Infof("发现订阅：%s", feedURL)
			}
			items, err := feeds.Parse(ctx, cl, feedURL, max)
			if err != nil {
				return err
			}
			tpl, err := a.template(model.KindArticle)
			if err != nil {
				return err
			}
			im := &feeds.Importer{
				Dir:       a.cfg.Dir(model.KindArticle),
				Template:  tpl,
				Author:    author,
				Category:  category,
				Overwrite: overwrite,
			}
			res, err := im.Import(ctx, items)
			if err != nil {
				return err
			}
			logx.Infof("导入完成：写入 %d，已存在 %d，跳过 %d", len(res.Written), len(res.Exists), len(res.Skipped))
			if noBuild || len(res.Written) == 0 {
				return nil
			}
			_, _, err = a.rebuild(ctx)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&discover, "discover", false, "treat the URL as a site and discover its feed")
	f.IntVar(&max, "max", 0, "import at most N items (0 = all)")
	f.StringVar(&author, "author", "BAMACO Staff", "author for items without one")
	f.StringVar(&category, "category", "News", "category for items without one")
	f.BoolVar(&overwrite, "overwrite", false, "replace the object of documents that already exist")
	f.BoolVar(&noBuild, "no-build", false, "do not regenerate data.json afterwards")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the aggregated players, guilds and articles into the local database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.OpenSQLite(a.cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer st.Close()
			if reset {
				if err := st.Reset(ctx); err != nil {
					return err
				}
				logx.Infof("已清空快照表（players/guilds/articles）")
			}
			out, _, err := a.runner.Build(ctx)
			if err != nil {
				return err
			}
			if err := st.SaveSnapshot(ctx, out); err != nil {
				return err
			}
			s, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			logx.Infof("迁移完成：玩家=%d 公会=%d 文章=%d 评分历史=%d", s.Players, s.Guilds, s.Articles, s.History)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "empty the snapshot tables first")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the editor API; edits are written to the documents and data.json is rebuilt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return server.New(a.cfg, a.runner, nil).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default SERVER.addr)")
	return cmd
}
