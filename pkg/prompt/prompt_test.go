package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildAppendsMemoryFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("b.md", "사용자는 커피를 좋아한다")
	write("a.txt", "사용자 이름은 민수")
	write("ignore.bin", "binary")
	write("empty.txt", "   \n")

	got := NewBuilder("기본 프롬프트", dir).Build()
	want := "기본 프롬프트\n\n사용자 이름은 민수\n\n사용자는 커피를 좋아한다"
	if got != want {
		t.Fatalf("unexpected prompt:\n%s", got)
	}
	if strings.Contains(got, "binary") {
		t.Fatalf("non-text file must be ignored")
	}
}

func TestBuildWithoutMemoryDir(t *testing.T) {
	if got := NewBuilder("base", "").Build(); got != "base" {
		t.Fatalf("expected base prompt, got %q", got)
	}
	if got := NewBuilder("base", filepath.Join(t.TempDir(), "missing")).Build(); got != "base" {
		t.Fatalf("expected base prompt for missing dir, got %q", got)
	}
}
