package llm

import "strings"

// Partition splits model names into chat and caption candidates. A name is a
// caption model when it contains any keyword, case-insensitively. An empty
// category falls back to the first available model.
func Partition(names []string, captionKeywords []string) (chat []string, caption []string) {
	chat = []string{}
	caption = []string{}
	for _, name := range names {
		if IsCaptionModel(name, captionKeywords) {
			caption = append(caption, name)
		} else {
			chat = append(chat, name)
		}
	}

	if len(names) > 0 {
		if len(chat) == 0 {
			chat = []string{names[0]}
		}
		if len(caption) == 0 {
			caption = []string{names[0]}
		}
	}
	return chat, caption
}

func IsCaptionModel(name string, captionKeywords []string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range captionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
