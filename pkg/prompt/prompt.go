// Package prompt assembles the system instructions for a call from the
// base persona plus optional memory-context files. Built fresh per call so
// edits to the memory directory take effect without a restart.
package prompt

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanavoice/hana/pkg/logging"
)

type Builder struct {
	BasePrompt string
	MemoryDir  string

	logger *slog.Logger
}

func NewBuilder(basePrompt, memoryDir string) *Builder {
	return &Builder{
		BasePrompt: basePrompt,
		MemoryDir:  memoryDir,
		logger:     logging.NewComponentLogger(slog.Default(), "prompt"),
	}
}

// Build returns the instructions text: the base prompt followed by the
// contents of every readable .txt/.md file in the memory directory, in
// name order. A missing or empty directory yields the base prompt alone.
func (b *Builder) Build() string {
	if b.MemoryDir == "" {
		return b.BasePrompt
	}
	entries, err := os.ReadDir(b.MemoryDir)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("memory_dir_unreadable", "dir", b.MemoryDir, "error", err.Error())
		}
		return b.BasePrompt
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(b.BasePrompt)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(b.MemoryDir, name))
		if err != nil {
			b.logger.Warn("memory_file_unreadable", "file", name, "error", err.Error())
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(content)
	}
	return sb.String()
}
