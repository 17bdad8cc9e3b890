package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bamaco-content/internal/logx"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
	"bamaco-content/internal/profile"
	"bamaco-content/internal/refresh"
	"bamaco-content/internal/store"
)

func (a *app) refreshCmd() *cobra.Command {
	var history, noBuild bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh player ign/rating/title/avatar from the stats API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := a.maimaiClient()
			if err != nil {
				return err
			}
			if h, err := api.Health(ctx); err != nil {
				logx.Warnf("统计 API 健康检查失败：%v", err)
			} else {
				logx.Infof("统计 API 状态：%s", h.Status)
			}
			r := &refresh.Refresher{Runner: a.runner, API: api, BatchSize: a.cfg.Maimai.BatchSize}
			if history {
				st, err := store.OpenSQLite(a.cfg.Database.DSN)
				if err != nil {
					return err
				}
				defer st.Close()
				r.Store = st
			}
			rep, err := r.Run(ctx)
			if err != nil {
				return err
			}
			for _, e := range rep.Errors {
				logx.Warnf("刷新失败：%s %s（%s）", e.FriendCode, e.Path, e.Error)
			}
			logx.Infof("刷新完成：共 %d 个好友码，更新 %d，未变化 %d，失败 %d，跳过 %d",
				rep.Total, len(rep.Updated), len(rep.Unchanged), len(rep.Errors), len(rep.Skipped))
			if noBuild || len(rep.Updated) == 0 {
				return nil
			}
			_, _, err = a.rebuild(ctx)
			return err
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "record fetched ratings in the local database")
	cmd.Flags().BoolVar(&noBuild, "no-build", false, "do not regenerate data.json afterwards")
	return cmd
}

func (a *app) profileCmd() *cobra.Command {
	var title, bodyFile string
	var noBuild bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create or update a player document from a profile request (issue title and body).",
		Long: "The request body is read from --body-file, or from the ISSUE_BODY environment variable.\n" +
			"A title containing " + profile.UpdateMarker + " updates an existing profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if title == "" {
				title = os.Getenv("ISSUE_TITLE")
			}
			body := os.Getenv("ISSUE_BODY")
			if bodyFile != "" {
				b, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				body = string(b)
			}
			if strings.TrimSpace(body) == "" {
				return errors.New("empty request body")
			}
			req, err := profile.Parse(title, body)
			if err != nil {
				return err
			}
			api, err := a.maimaiClient()
			if err != nil {
				return err
			}
			tpl, err := a.template(model.KindPlayer)
			if err != nil {
				return err
			}
			p := &profile.Processor{API: api, Dir: a.cfg.Dir(model.KindPlayer), Template: tpl}
			path, err := p.Process(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if noBuild {
				return nil
			}
			_, _, err = a.rebuild(ctx)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "request title (default $ISSUE_TITLE)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "file containing the request body (default $ISSUE_BODY)")
	cmd.Flags().BoolVar(&noBuild, "no-build", false, "do not regenerate data.json afterwards")
	return cmd
}

func (a *app) checkCodeCmd() *cobra.Command {
	var lookup bool
	cmd := &cobra.Command{
		Use:   "check-code <friend-code>...",
		Short: "Validate friend codes, optionally looking them up in the stats API.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			header := table.Row{"Code", "Valid", "15 digits"}
			if lookup {
				header = append(header, "IGN", "Rating", "Trophy", "Error")
			}
			t.AppendHeader(header)

			codes := make([]string, len(args))
			for i, arg := range args {
				codes[i] = maimai.CleanFriendCode(arg)
			}
			results := map[string]maimai.Result{}
			if lookup {
				api, err := a.maimaiClient()
				if err != nil {
					return err
				}
				for start := 0; start < len(codes); start += maimai.MaxBatch {
					batch := codes[start:min(start+maimai.MaxBatch, len(codes))]
					res, err := api.FetchBatch(cmd.Context(), batch)
					if err != nil {
						return err
					}
					for k, v := range res {
						results[k] = v
					}
				}
			}
			invalid := 0
			for _, code := range codes {
				ok := maimai.ValidFriendCode(code)
				if !ok {
					invalid++
				}
				row := table.Row{code, ok, maimai.CanonicalFriendCode(code)}
				if lookup {
					r := results[code]
					msg := ""
					if r.Err != nil {
						msg = r.Err.Error()
					}
					row = append(row, r.Player.IGN, r.Player.Rating, r.Player.Trophy, msg)
				}
				t.AppendRow(row)
			}
			t.Render()
			if invalid > 0 {
				return fmt.Errorf("%d invalid friend code(s)", invalid)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lookup, "lookup", false, "query the stats API for each code")
	return cmd
}
