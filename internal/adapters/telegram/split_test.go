package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageKeepsBlocksWhole(t *testing.T) {
	block := "<b>Title</b>\nChapter: 1\nUpdated: unknown\n" + strings.Repeat("x", 200)
	blocks := make([]string, 40)
	for i := range blocks {
		blocks[i] = block
	}
	parts := SplitMessage(strings.Join(blocks, "\n\n"))
	if len(parts) < 2 {
		t.Fatalf("ожидали несколько сообщений, получили %d", len(parts))
	}
	total := 0
	for i, part := range parts {
		if n := len([]rune(part)); n > messageLimit {
			t.Fatalf("сообщение %d превышает лимит: %d", i, n)
		}
		for _, b := range strings.Split(part, "\n\n") {
			if b != block {
				t.Fatalf("блок разорван в сообщении %d", i)
			}
			total++
		}
	}
	if total != len(blocks) {
		t.Fatalf("потеряны блоки: %d из %d", total, len(blocks))
	}
}

func TestSplitMessageLongBlockFallsBackToLines(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("b", 2000))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 сообщения, получили %d", len(parts))
	}
	if parts[0] != strings.Repeat("a", 3000) || parts[1] != strings.Repeat("b", 2000) {
		t.Fatalf("разрез должен идти по переводу строки")
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("я", messageLimit+10))
	if len(parts) != 2 || len([]rune(parts[0])) != messageLimit {
		t.Fatalf("ожидали жёсткий разрез по лимиту, получили %d частей", len(parts))
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "hello world"
	parts := SplitMessage(text)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("неожиданный результат: %q", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой текст не даёт сообщений, получили %d", len(parts))
	}
}
