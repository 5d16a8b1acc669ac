package telegram

import "strings"

const messageLimit = 4096

// SplitMessage делит текст на сообщения не длиннее лимита Telegram.
// Блоки, разделённые пустой строкой, не разрываются, пока помещаются в одно сообщение:
// карточка закладки с HTML-тегами всегда уходит целиком.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if runeLen(trimmed) <= messageLimit {
		return []string{trimmed}
	}

	var (
		parts   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}
	for _, block := range strings.Split(trimmed, "\n\n") {
		block = strings.Trim(block, "\n")
		if block == "" {
			continue
		}
		if runeLen(block) > messageLimit {
			flush()
			parts = append(parts, splitLines(block)...)
			continue
		}
		sep := 0
		if current.Len() > 0 {
			sep = 2
		}
		if runeLen(current.String())+sep+runeLen(block) > messageLimit {
			flush()
			sep = 0
		}
		if sep > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}
	flush()
	return parts
}

// splitLines режет длинный блок по переводам строк, а слишком длинные строки по лимиту.
func splitLines(block string) []string {
	var parts []string
	runes := []rune(block)
	for start := 0; start < len(runes); {
		end := start + messageLimit
		if end >= len(runes) {
			end = len(runes)
		} else {
			for i := end; i > start; i-- {
				if runes[i-1] == '\n' {
					end = i
					break
				}
			}
		}
		if chunk := strings.Trim(string(runes[start:end]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = end
	}
	return parts
}

func runeLen(s string) int {
	return len([]rune(s))
}
