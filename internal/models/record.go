package models

// ChapterEntry 章节表条目及其在源文本中的位置
// Start/End 为半开区间 [Start, End)，未定位的章节长度为零
type ChapterEntry struct {
	ChapterNumber int    `json:"chapter_number"`
	ChapterName   string `json:"chapter_name"`
	Page          int    `json:"page,omitempty"` // 目录中的页码，0表示未知
	Start         int    `json:"start"`
	End           int    `json:"end"`
}

// Len 返回章节跨度长度
func (c ChapterEntry) Len() int {
	return c.End - c.Start
}

// Chunk 章节内的一个连续文本块
type Chunk struct {
	ChapterNumber int    // 所属章节号
	Index         int    // 块序号，从1开始
	Content       string // 去除首尾空白后的内容
	Start         int    // 在章节文本中的起始偏移（含）
	End           int    // 在章节文本中的结束偏移（不含）
}

// Table 从正文中识别出的临床表格
type Table struct {
	Title string   `json:"title"`
	Rows  []string `json:"rows"`
}

// Record 数据集中的一条记录，对应一个Chunk
type Record struct {
	BookTitle        string    `json:"book_title" validate:"required"`
	ChapterID        string    `json:"chapter_id" validate:"required"`
	ChapterNumber    int       `json:"chapter_number" validate:"gt=0"`
	ChapterName      string    `json:"chapter_name"`
	ChunkIndex       int       `json:"chunk_index" validate:"gte=1"`
	TopicName        string    `json:"topic_name"`
	Content          string    `json:"content" validate:"notblank"`
	Summary          string    `json:"summary"`
	Category         string    `json:"category" validate:"required"`
	MicroChunks      []string  `json:"micro_chunks"`
	Tables           []Table   `json:"tables"`
	ContentEmbedding []float32 `json:"content_embedding"`
	SummaryEmbedding []float32 `json:"summary_embedding"`
	TopicEmbedding   []float32 `json:"topic_embedding"`
}

// Normalized 返回将空列表字段替换为非nil空切片后的副本
// 保证序列化后列表字段始终为 []，而不是 null
func (r Record) Normalized() Record {
	if r.MicroChunks == nil {
		r.MicroChunks = []string{}
	}
	if r.Tables == nil {
		r.Tables = []Table{}
	}
	for i := range r.Tables {
		if r.Tables[i].Rows == nil {
			r.Tables[i].Rows = []string{}
		}
	}
	if r.ContentEmbedding == nil {
		r.ContentEmbedding = []float32{}
	}
	if r.SummaryEmbedding == nil {
		r.SummaryEmbedding = []float32{}
	}
	if r.TopicEmbedding == nil {
		r.TopicEmbedding = []float32{}
	}
	return r
}
