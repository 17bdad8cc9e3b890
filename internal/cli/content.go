package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/titanous/json5"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/generate"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/model"
)

func (a *app) buildCmd() *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Aggregate all documents into data.json.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rep, err := a.rebuild(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range rep.Skipped {
				logx.Warnf("已跳过：%s（%s）", s.Path, s.Reason)
			}
			if reportPath != "" {
				b, err := json.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
				if err := generate.WriteAtomic(reportPath, b); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "also write the run report as JSON to this path")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print an aggregate summary without writing data.json.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, rep, err := a.runner.Build(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetTitle("Players")
			t.AppendHeader(table.Row{"#", "IGN", "Rating", "Rank", "Guild", "Articles"})
			for i, p := range out.Players {
				if top > 0 && i >= top {
					break
				}
				t.AppendRow(table.Row{i + 1, p.IGN, p.Rating, p.Rank, p.GuildID, len(p.Articles)})
			}
			t.AppendFooter(table.Row{"", "total", len(out.Players)})
			t.SetStyle(table.StyleRounded)
			t.Render()

			g := table.NewWriter()
			g.SetOutputMirror(w)
			g.SetTitle("Guilds")
			g.AppendHeader(table.Row{"ID", "Name", "Members", "Level"})
			for _, x := range out.Guilds {
				g.AppendRow(table.Row{x.ID, x.Name, x.MemberCount, x.Level})
			}
			g.SetStyle(table.StyleRounded)
			g.Render()

			ar := table.NewWriter()
			ar.SetOutputMirror(w)
			ar.SetTitle("Articles")
			ar.AppendHeader(table.Row{"ID", "Title", "Author", "Date", "Category"})
			for _, x := range out.Articles {
				ar.AppendRow(table.Row{x.ID, x.Title, x.Author, x.Date, x.Category})
			}
			ar.SetStyle(table.StyleRounded)
			ar.Render()

			if n := len(rep.Skipped) + len(rep.Excluded) + len(rep.Warnings) + len(rep.Conflicts) + len(rep.Unlinked); n > 0 {
				d := table.NewWriter()
				d.SetOutputMirror(w)
				d.SetTitle("Diagnostics")
				d.AppendHeader(table.Row{"Type", "Kind", "Path", "Detail"})
				for _, s := range rep.Skipped {
					d.AppendRow(table.Row{"skipped", s.Kind, s.Path, s.Reason})
				}
				for _, s := range rep.Excluded {
					d.AppendRow(table.Row{"excluded", s.Kind, s.Path, s.Reason})
				}
				for _, s := range rep.Warnings {
					d.AppendRow(table.Row{"warning", s.Kind, s.Path, s.Reason})
				}
				for _, c := range rep.Conflicts {
					d.AppendRow(table.Row{"conflict", model.KindPlayer, c.Key, strings.Join(c.Players, ", ")})
				}
				for _, u := range rep.Unlinked {
					detail := "author " + u.Author
					if u.Suggestion != "" {
						detail += fmt.Sprintf(" (did you mean %s? %.2f)", u.Suggestion, u.Similarity)
					}
					d.AppendRow(table.Row{"unlinked", model.KindArticle, u.ArticleID, detail})
				}
				d.SetStyle(table.StyleRounded)
				d.Render()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "only list the top N players (0 = all)")
	return cmd
}

func (a *app) patchCmd() *cobra.Command {
	var noBuild bool
	cmd := &cobra.Command{
		Use:   "patch <kind> <id> key=value...",
		Short: "Update fields of one document in place.",
		Long: "Values are read as JSON5 literals (15234, 'text', ['a','b']); anything that does\n" +
			"not parse is taken as a plain string.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			updates, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			path, err := a.runner.Lookup(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			changed, err := generate.NewWriter().PatchFile(path, kind, updates)
			if err != nil {
				return err
			}
			if len(changed) == 0 {
				logx.Infof("内容未变化：%s", path)
				return nil
			}
			logx.Infof("已修改 %s：%s", path, strings.Join(changed, ", "))
			if noBuild {
				return nil
			}
			_, _, err = a.rebuild(cmd.Context())
			return err
		},
	}
	cmd.Flags().BoolVar(&noBuild, "no-build", false, "do not regenerate data.json afterwards")
	return cmd
}

// parseAssignments 解析 key=value 参数，值按 JSON5 字面量解析。
func parseAssignments(args []string) (jsobj.Fields, error) {
	var f jsobj.Fields
	for _, arg := range args {
		k, raw, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		f = append(f, jsobj.KV{Key: k, Value: json5Value(raw)})
	}
	return f, nil
}

func json5Value(raw string) any {
	var v any
	if err := json5.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int(x)
		}
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string, bool:
		return x
	}
	return raw
}

func (a *app) generateCmd() *cobra.Command {
	var from, out string
	var force bool
	cmd := &cobra.Command{
		Use:   "generate <kind> --from record.json5",
		Short: "Create or replace a document from a hand-written JSON5 record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			src, err := os.ReadFile(from)
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			fields, name, err := decodeRecord(kind, src)
			if err != nil {
				return fmt.Errorf("decode %s: %w", from, err)
			}
			if out == "" {
				if name == "" {
					return fmt.Errorf("record has no usable name; pass --out")
				}
				out = filepath.Join(a.cfg.Dir(kind), name+".html")
			}
			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists (use --force to replace its object)", out)
				}
			}
			tpl, err := a.template(kind)
			if err != nil {
				return err
			}
			written, err := generate.NewWriter().Save(out, kind, fields, tpl)
			if err != nil {
				return err
			}
			if written {
				logx.Infof("已生成 %s", out)
			} else {
				logx.Infof("内容未变化：%s", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "JSON5 record file")
	cmd.Flags().StringVar(&out, "out", "", "output document path (default: <kind dir>/<name>.html)")
	cmd.Flags().BoolVar(&force, "force", false, "replace the object in an existing document")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// decodeRecord 将 JSON5 记录转换为对象字段，并给出默认文件名主干。
func decodeRecord(kind model.Kind, src []byte) (jsobj.Fields, string, error) {
	switch kind {
	case model.KindPlayer:
		var p model.Player
		if err := json5.Unmarshal(src, &p); err != nil {
			return nil, "", err
		}
		if p.Achievement == nil {
			p.Achievement = []model.Achievement{}
		}
		name := p.ID
		if name == "" {
			name = generate.SafeName(p.IGN)
		}
		return generate.PlayerObject(p), name, nil
	case model.KindGuild:
		var g model.Guild
		if err := json5.Unmarshal(src, &g); err != nil {
			return nil, "", err
		}
		if g.ID == "" {
			g.ID = generate.SafeName(g.Name)
		}
		if g.Achievement == nil {
			g.Achievement = []model.Achievement{}
		}
		return generate.GuildObject(g), g.ID, nil
	case model.KindArticle:
		var ar model.Article
		if err := json5.Unmarshal(src, &ar); err != nil {
			return nil, "", err
		}
		if ar.ID == "" {
			ar.ID = generate.SafeName(ar.Title)
		}
		if ar.Excerpt == "" {
			ar.Excerpt = extract.Excerpt(ar.Content, "")
		}
		if ar.ReadingTime == 0 {
			ar.ReadingTime = generate.ReadingTime(ar.Content)
		}
		return generate.ArticleObject(ar), ar.ID, nil
	}
	return nil, "", fmt.Errorf("unknown kind %q", kind)
}
