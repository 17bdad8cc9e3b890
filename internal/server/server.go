// 包 server 提供编辑 API（chi）：
// - GET  /health
// - GET  /api/data            最近一次聚合结果（与 data.json 相同）
// - GET  /api/{kind}/{id}     单条记录
// - PATCH /api/{kind}/{id}    字段级修改写回 HTML 文档，随后重建聚合结果
//
// 聚合结果只读；所有修改都落到文档上，data.json 由文档重新生成。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bamaco-content/internal/aggregate"
	"bamaco-content/internal/config"
	"bamaco-content/internal/export"
	"bamaco-content/internal/generate"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/model"
)

// editable 列出各类记录允许通过 API 修改的字段。memberCount/members/articles 为推导字段，不可写。
var editable = map[model.Kind]map[string]bool{
	model.KindPlayer: set("name", "ign", "nickname", "title", "avatarImage", "maimaiFriendCode",
		"rating", "rank", "age", "motto", "joined", "bio", "guildId"),
	model.KindGuild: set("name", "motto", "level", "established", "description", "guildLogo"),
	model.KindArticle: set("title", "author", "date", "category", "excerpt", "content",
		"tags", "readingTime", "featuredImage"),
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// Server 持有聚合器、写入器与最近一次聚合快照。
type Server struct {
	cfg    *config.Config
	runner *aggregate.Runner
	writer *generate.Writer
	buf    *aggregate.SimpleBuffer

	mu     sync.Mutex // 串行化重建
	report *model.Report
}

// New 创建服务。writer 为空时新建。
func New(cfg *config.Config, runner *aggregate.Runner, writer *generate.Writer) *Server {
	if writer == nil {
		writer = generate.NewWriter()
	}
	return &Server{cfg: cfg, runner: runner, writer: writer, buf: aggregate.NewSimpleBuffer()}
}

// Rebuild 重新聚合全部文档，写出 data.json 并刷新快照。
func (s *Server) Rebuild(ctx context.Context) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, rep, err := s.runner.Build(ctx)
	if err != nil {
		return rep, fmt.Errorf("build: %w", err)
	}
	if err := export.ToJSON(s.cfg.OutputPath(), out); err != nil {
		return rep, err
	}
	s.buf.Set(out)
	s.report = rep
	return rep, nil
}

// Router 返回 HTTP 路由。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/data", s.getData)
		r.Get("/report", s.getReport)
		r.Get("/{kind}/{id}", s.getRecord)
		r.Patch("/{kind}/{id}", s.patchRecord)
	})
	return r
}

// ListenAndServe 启动前先构建一次，ctx 结束时优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logx.Infof("编辑 API 已启动：%s", s.cfg.Server.Addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := export.Encode(w, s.buf.Snapshot()); err != nil {
		logx.Errorf("写出 data 失败：%v", err)
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rep := s.report
	s.mu.Unlock()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no build yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func kindParam(r *http.Request) (model.Kind, bool) {
	k := model.Kind(chi.URLParam(r, "kind"))
	_, ok := editable[k]
	return k, ok
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown kind")
		return
	}
	rec, ok := s.buf.Get(kind, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type patchResponse struct {
	Changed []string `json:"changed"`
	Record  any      `json:"record,omitempty"`
}

func (s *Server) patchRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown kind")
		return
	}
	id := chi.URLParam(r, "id")
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	updates, err := toFields(kind, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.runner.Lookup(r.Context(), kind, id)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		logx.Errorf("查找文档失败：%s/%s 错误=%v", kind, id, err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	changed, err := s.writer.PatchFile(path, kind, updates)
	if err != nil {
		logx.Errorf("写回文档失败：%s 错误=%v", path, err)
		writeError(w, http.StatusInternalServerError, "patch failed")
		return
	}
	if changed == nil {
		changed = []string{}
	}
	if len(changed) > 0 {
		logx.Infof("文档已修改：%s 字段=%v", path, changed)
		if _, err := s.Rebuild(r.Context()); err != nil {
			logx.Errorf("重建失败：%v", err)
			writeError(w, http.StatusInternalServerError, "rebuild failed")
			return
		}
	}
	rec, _ := s.buf.Get(kind, id)
	writeJSON(w, http.StatusOK, patchResponse{Changed: changed, Record: rec})
}

// toFields 校验字段白名单并把 JSON 值转换为对象字面量值。键按字母序排列，插入顺序稳定。
func toFields(kind model.Kind, body map[string]any) (jsobj.Fields, error) {
	if len(body) == 0 {
		return nil, errors.New("empty update")
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		if !editable[kind][k] {
			return nil, fmt.Errorf("field %q is not editable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f := make(jsobj.Fields, 0, len(keys))
	for _, k := range keys {
		v, err := literal(body[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if s, ok := v.(string); ok && (k == "content" || k == "excerpt") {
			v = jsobj.Template(s)
		}
		f = append(f, jsobj.KV{Key: k, Value: v})
	}
	return f, nil
}

func literal(v any) (any, error) {
	switch x := v.(type) {
	case string, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		fl, err := x.Float64()
		if err != nil || math.IsInf(fl, 0) || math.IsNaN(fl) {
			return nil, fmt.Errorf("invalid number %s", x)
		}
		return fl, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, errors.New("only string arrays are supported")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestLog 以 slog 记录每个请求。
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logx.With("req", middleware.GetReqID(r.Context())).Debug("请求",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur", time.Since(start))
	})
}
