package document

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

var (
	chapterMarkerCapture = regexp.MustCompile(`(?m)^[ \t]*>>[ \t]*CHAPTER:[ \t]*([^\n]*?)[ \t]*(?:<<)?[ \t]*$`)
	pageMarkerCapture    = regexp.MustCompile(`(?mi)^[ \t]*-{2,}[ \t]*PAGE[ \t]+(\d+)[ \t]*-{2,}[ \t]*$`)
	chapterPrefix        = regexp.MustCompile(`^chapter \d+ `)
)

// maxIndexedLine 建立整行索引的最大行长，更长的行不可能是章节标题
const maxIndexedLine = 200

// Segmenter 章节定位器
type Segmenter struct{}

// NewSegmenter 创建章节定位器
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// locator 对一份源文本预先建立的查找索引
type locator struct {
	text    string
	canon   string
	offsets []int // canon 中每个字节对应的源文本偏移

	markers []markerHit
	lines   map[string][]int // 规范化行 -> 行首偏移（升序）
	pages   map[int][]int    // 页码 -> 页标记偏移（升序）
}

type markerHit struct {
	start, end int
	value      string // 规范化后的标记内容
}

// Segment 按章节表顺序定位每个章节在 text 中的半开区间
// 无法定位的章节得到零长度区间，并返回对应的 SegmentationError
func (s *Segmenter) Segment(text string, toc []models.ChapterEntry) ([]models.ChapterEntry, []error) {
	loc := newLocator(text)

	starts := make([]int, len(toc))
	cursor := 0
	for i, entry := range toc {
		start, length, ok := loc.find(entry, cursor)
		if !ok {
			starts[i] = -1
			continue
		}
		starts[i] = start
		cursor = start + length
	}

	var errs []error
	chapters := make([]models.ChapterEntry, len(toc))
	prevEnd := 0
	for i, entry := range toc {
		chapter := entry
		if starts[i] < 0 {
			chapter.Start, chapter.End = prevEnd, prevEnd
			chapters[i] = chapter
			errs = append(errs, &models.SegmentationError{
				ChapterNumber: entry.ChapterNumber,
				ChapterName:   entry.ChapterName,
			})
			continue
		}

		end := len(text)
		for j := i + 1; j < len(toc); j++ {
			if starts[j] >= 0 {
				end = starts[j]
				break
			}
		}
		chapter.Start, chapter.End = starts[i], end
		chapters[i] = chapter
		prevEnd = end
	}

	return chapters, errs
}

func newLocator(text string) *locator {
	loc := &locator{
		text:  text,
		lines: make(map[string][]int),
		pages: make(map[int][]int),
	}
	loc.canon, loc.offsets = canonicalWithOffsets(text)

	for _, m := range chapterMarkerCapture.FindAllStringSubmatchIndex(text, -1) {
		loc.markers = append(loc.markers, markerHit{
			start: m[0],
			end:   m[1],
			value: Canonical(text[m[2]:m[3]]),
		})
	}

	for _, m := range pageMarkerCapture.FindAllStringSubmatchIndex(text, -1) {
		page, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		loc.pages[page] = append(loc.pages[page], m[0])
	}

	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if utf8.RuneCountInString(line) <= maxIndexedLine {
			if key := Canonical(line); key != "" {
				loc.lines[key] = append(loc.lines[key], offset)
				if stripped := chapterPrefix.ReplaceAllString(key, ""); stripped != key {
					loc.lines[stripped] = append(loc.lines[stripped], offset)
				}
			}
		}
		offset += len(line)
	}

	return loc
}

// find 依次尝试：章节标记、整行标题、页码标记、正文中任意位置
// 返回起始偏移与命中长度
func (l *locator) find(entry models.ChapterEntry, cursor int) (int, int, bool) {
	name := Canonical(entry.ChapterName)
	number := strconv.Itoa(entry.ChapterNumber)

	for _, m := range l.markers {
		if m.start < cursor {
			continue
		}
		if (name != "" && m.value == name) || m.value == number {
			return m.start, m.end - m.start, true
		}
	}

	if name == "" {
		return 0, 0, false
	}

	if starts, ok := l.lines[name]; ok {
		if i := sort.SearchInts(starts, cursor); i < len(starts) {
			lineEnd := strings.IndexByte(l.text[starts[i]:], '\n')
			if lineEnd < 0 {
				lineEnd = len(l.text) - starts[i]
			}
			return starts[i], lineEnd, true
		}
	}

	if entry.Page > 0 {
		if starts, ok := l.pages[entry.Page]; ok {
			if i := sort.SearchInts(starts, cursor); i < len(starts) {
				return starts[i], 1, true
			}
		}
	}

	from := sort.SearchInts(l.offsets, cursor)
	for from < len(l.canon) {
		idx := strings.Index(l.canon[from:], name)
		if idx < 0 {
			break
		}
		pos := from + idx
		end := pos + len(name)
		if (pos == 0 || l.canon[pos-1] == ' ') && (end == len(l.canon) || l.canon[end] == ' ') {
			srcStart := l.offsets[pos]
			srcEnd := l.offsets[end-1] + 1
			return srcStart, srcEnd - srcStart, true
		}
		from = pos + 1
	}

	return 0, 0, false
}

// Canonical 返回用于比较章节名的规范形式：小写，标点折叠为空格，空白合并
func Canonical(s string) string {
	c, _ := canonicalWithOffsets(s)
	return c
}

func canonicalWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s))

	pendingSpace := false
	spaceAt := 0
	for i, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if !pendingSpace {
				pendingSpace, spaceAt = true, i
			}
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
			offsets = append(offsets, spaceAt)
		}
		pendingSpace = false

		before := b.Len()
		b.WriteRune(unicode.ToLower(r))
		for k := before; k < b.Len(); k++ {
			offsets = append(offsets, i)
		}
	}

	return b.String(), offsets
}
