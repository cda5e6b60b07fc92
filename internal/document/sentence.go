package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations 句点后不视为句子结束的缩写
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "al": true, "dr": true,
	"fig": true, "figs": true, "approx": true, "no": true, "ref": true, "st": true,
	"mr": true, "mrs": true, "ms": true, "ca": true, "cf": true,
}

// SplitSentences 按句末标点和换行切分句子，返回去除首尾空白的非空句子
func SplitSentences(text string) []string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		sentences = append(sentences, splitLine(line)...)
	}
	return sentences
}

func splitLine(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRuneInString(line[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		end := i
		for end < len(line) && strings.IndexByte(`"')]`, line[end]) >= 0 {
			end++
		}
		if end < len(line) {
			next, _ := utf8.DecodeRuneInString(line[end:])
			if !unicode.IsSpace(next) {
				continue
			}
		}
		if r == '.' && isAbbreviation(line[start:i-1]) {
			continue
		}

		if s := strings.TrimSpace(line[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
		i = end
	}
	if s := strings.TrimSpace(line[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// isAbbreviation 判断句点前的最后一个词是否为常见缩写
func isAbbreviation(before string) bool {
	idx := strings.LastIndexFunc(before, unicode.IsSpace)
	word := strings.ToLower(strings.TrimLeft(before[idx+1:], `"'([`))
	return abbreviations[word]
}
