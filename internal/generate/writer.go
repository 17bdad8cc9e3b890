package generate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/model"
)

// Writer 串行化同一路径上的写入，并以临时文件 + rename 保证文件要么是旧内容要么是新内容。
type Writer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter 创建写入器。
func NewWriter() *Writer {
	return &Writer{locks: map[string]*sync.Mutex{}}
}

func (w *Writer) lock(path string) func() {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	w.mu.Lock()
	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	w.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Write 写入完整内容；内容未变化时不落盘，返回是否写入。
func (w *Writer) Write(path, content string) (bool, error) {
	return w.Update(path, func(string, bool) (string, error) { return content, nil })
}

// Update 在路径锁内读取旧内容（不存在时 exists=false）、计算新内容并写回。
func (w *Writer) Update(path string, fn func(old string, exists bool) (string, error)) (bool, error) {
	unlock := w.lock(path)
	defer unlock()

	var old string
	exists := true
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return false, fmt.Errorf("read %s: %w", path, err)
	default:
		old = string(b)
	}
	next, err := fn(old, exists)
	if err != nil {
		return false, err
	}
	if exists && next == old {
		return false, nil
	}
	if err := WriteAtomic(path, []byte(next)); err != nil {
		return false, err
	}
	return true, nil
}

// Save 写入记录：文件已存在时在原文档上替换对象，否则使用模板，模板为空时生成兜底文档。
func (w *Writer) Save(path string, kind model.Kind, f jsobj.Fields, template string) (bool, error) {
	return w.Update(path, func(old string, exists bool) (string, error) {
		base := template
		if exists {
			base = old
		}
		return Render(kind, f, base)
	})
}

// PatchFile 对已存在的文档做字段级更新，返回变化的键。
func (w *Writer) PatchFile(path string, kind model.Kind, updates jsobj.Fields) ([]string, error) {
	var changed []string
	_, err := w.Update(path, func(old string, exists bool) (string, error) {
		if !exists {
			return "", fmt.Errorf("patch %s: %w", path, fs.ErrNotExist)
		}
		out, keys, err := Patch(old, kind, updates)
		if err != nil {
			return "", fmt.Errorf("patch %s: %w", path, err)
		}
		changed = keys
		return out, nil
	})
	return changed, err
}

// WriteAtomic 写入同目录临时文件后 rename 覆盖目标，失败时原文件不变。
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(name, mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
