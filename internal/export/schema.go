package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// SchemaOptions 建表语句参数
type SchemaOptions struct {
	Dialect    string // sqlite 或 postgres
	Table      string // 表名，默认 pediatrics_chunks
	ChunkCount int    // chunk_index 的上限 k
}

type dialect struct {
	ID        string
	JSON      string
	Length    string
	Generated string
	Timestamp string
}

var dialects = map[string]dialect{
	"sqlite": {
		ID:        "INTEGER PRIMARY KEY AUTOINCREMENT",
		JSON:      "TEXT",
		Length:    "length",
		Generated: "VIRTUAL",
		Timestamp: "DATETIME",
	},
	"postgres": {
		ID:        "BIGSERIAL PRIMARY KEY",
		JSON:      "JSONB",
		Length:    "char_length",
		Generated: "STORED",
		Timestamp: "TIMESTAMPTZ",
	},
}

var schemaTemplate = template.Must(template.New("schema").Parse(`CREATE TABLE IF NOT EXISTS {{.Table}} (
    id {{.D.ID}},
    run_id VARCHAR(36) NOT NULL DEFAULT '',
    book_title TEXT NOT NULL,
    chapter_id VARCHAR(32) NOT NULL,
    chapter_number INTEGER NOT NULL CHECK (chapter_number > 0),
    chapter_name TEXT NOT NULL DEFAULT '',
    chunk_index INTEGER NOT NULL CHECK (chunk_index BETWEEN 1 AND {{.ChunkCount}}),
    topic_name VARCHAR(255) NOT NULL DEFAULT '',
    content TEXT NOT NULL CHECK ({{.D.Length}}(trim(content)) > 0),
    summary TEXT NOT NULL DEFAULT '',
    category VARCHAR(64) NOT NULL,
    micro_chunks {{.D.JSON}} NOT NULL DEFAULT '[]',
    tables {{.D.JSON}} NOT NULL DEFAULT '[]',
    content_embedding {{.D.JSON}} NOT NULL DEFAULT '[]',
    summary_embedding {{.D.JSON}} NOT NULL DEFAULT '[]',
    topic_embedding {{.D.JSON}} NOT NULL DEFAULT '[]',
    content_length INTEGER GENERATED ALWAYS AS ({{.D.Length}}(content)) {{.D.Generated}},
    created_at {{.D.Timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (run_id, chapter_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_{{.Table}}_chapter ON {{.Table}} (chapter_number, chunk_index);
CREATE INDEX IF NOT EXISTS idx_{{.Table}}_category ON {{.Table}} (category);
CREATE INDEX IF NOT EXISTS idx_{{.Table}}_run ON {{.Table}} (run_id);
`))

// RenderSchema 生成建表与索引语句
func RenderSchema(opts SchemaOptions) (string, error) {
	if opts.Dialect == "" {
		opts.Dialect = "sqlite"
	}
	d, ok := dialects[opts.Dialect]
	if !ok {
		return "", fmt.Errorf("unsupported schema dialect: %s", opts.Dialect)
	}
	if opts.Table == "" {
		opts.Table = models.ChunkTableName
	}
	if opts.ChunkCount < 1 {
		return "", fmt.Errorf("chunk count must be positive, got %d", opts.ChunkCount)
	}

	var buf bytes.Buffer
	err := schemaTemplate.Execute(&buf, struct {
		Table      string
		ChunkCount int
		D          dialect
	}{opts.Table, opts.ChunkCount, d})
	if err != nil {
		return "", fmt.Errorf("failed to render schema: %w", err)
	}
	return buf.String(), nil
}

// WriteSchema 将建表语句写入 w
func WriteSchema(w io.Writer, opts SchemaOptions) error {
	ddl, err := RenderSchema(opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, ddl)
	return err
}

// SchemaStatements 返回逐条可执行的语句
func SchemaStatements(opts SchemaOptions) ([]string, error) {
	ddl, err := RenderSchema(opts)
	if err != nil {
		return nil, err
	}
	var stmts []string
	for _, s := range strings.Split(ddl, ";\n") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}
