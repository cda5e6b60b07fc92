package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{
			BookTitle:      "Nelson Textbook of Pediatrics",
			ChapterID:      "NELSON-CH-0006",
			ChapterNumber:  6,
			ChapterName:    "Social & Preventive Medicine",
			ChunkIndex:     1,
			TopicName:      "Poverty",
			Content:        "Poverty affects \"1 in 5\" children,\nand <housing> matters.",
			Summary:        "Poverty affects 1 in 5 children.",
			Category:       "Social & Preventive Medicine",
			MicroChunks:    []string{"Poverty affects", " children."},
			Tables:         []models.Table{{Title: "Table 6-1 Risk Factors", Rows: []string{"Food insecurity 12%", "Housing 8%"}}},
			TopicEmbedding: []float32{0.5, -0.25},
		},
		{
			BookTitle:     "Nelson Textbook of Pediatrics",
			ChapterID:     "NELSON-CH-0006",
			ChapterNumber: 6,
			ChapterName:   "Social & Preventive Medicine",
			ChunkIndex:    2,
			TopicName:     "Housing",
			Content:       "Unstable housing increases risk.",
			Category:      "Social & Preventive Medicine",
		},
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "nelson-textbook-of-pediatrics", BaseName("Nelson Textbook of Pediatrics"))
	assert.Equal(t, "the-harriet-lane-handbook-22nd-ed", BaseName("The Harriet Lane Handbook (22nd Ed.)"))
	assert.Equal(t, "dataset", BaseName("  "))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	first := rows[1]
	assert.Equal(t, "6", first[2])
	assert.Equal(t, "1", first[4])
	assert.Equal(t, "Poverty affects \"1 in 5\" children,\nand <housing> matters.", first[6])
	assert.Equal(t, `["Poverty affects"," children."]`, first[9])
	assert.Equal(t, `[{"title":"Table 6-1 Risk Factors","rows":["Food insecurity 12%","Housing 8%"]}]`, first[10])
	assert.Equal(t, `[]`, first[11])
	assert.Equal(t, `[0.5,-0.25]`, first[13])

	// 空列表写为 []
	second := rows[2]
	assert.Equal(t, "[]", second[9])
	assert.Equal(t, "[]", second[10])
}

func TestCSVAndJSONAgree(t *testing.T) {
	records := sampleRecords()

	var csvBuf, jsonBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, records))
	require.NoError(t, WriteJSON(&jsonBuf, records))

	rows, err := csv.NewReader(&csvBuf).ReadAll()
	require.NoError(t, err)

	var objects []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &objects))
	require.Len(t, objects, len(records))

	for i, obj := range objects {
		assert.Len(t, obj, len(Columns))
		for j, col := range Columns {
			raw := obj[col]
			require.NotNil(t, raw, col)

			var s string
			if json.Unmarshal(raw, &s) == nil {
				assert.Equal(t, s, rows[i+1][j], col)
				continue
			}
			// 数字与列表字段：CSV 单元格与 JSON 值紧凑形式一致
			var compact bytes.Buffer
			require.NoError(t, json.Compact(&compact, raw))
			assert.Equal(t, compact.String(), rows[i+1][j], col)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[\n  {"))
	assert.Contains(t, out, `"category": "Social & Preventive Medicine"`)
	assert.Contains(t, out, `"micro_chunks": []`)
	assert.NotContains(t, out, "null")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestReadBack(t *testing.T) {
	records := sampleRecords()
	want := make([]models.Record, len(records))
	for i, r := range records {
		want[i] = r.Normalized()
	}

	var csvBuf, jsonBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, records))
	require.NoError(t, WriteJSON(&jsonBuf, records))

	fromCSV, err := ReadCSV(&csvBuf)
	require.NoError(t, err)
	assert.Equal(t, want, fromCSV)

	fromJSON, err := ReadJSON(&jsonBuf)
	require.NoError(t, err)
	assert.Equal(t, want, fromJSON)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("book_title,content\nx,y\n"))
	assert.ErrorContains(t, err, "chapter_number")

	_, err = ReadCSV(strings.NewReader("book_title,chapter_number,chunk_index,content\nx,seven,1,y\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("book_title,chapter_number,chunk_index,content,tables\nx,7,1,y,[oops\n"))
	assert.ErrorContains(t, err, "tables")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	records := sampleRecords()
	records[1].Content = strings.Repeat("a", excelize.TotalCellChars+10)
	require.NoError(t, WriteXLSX(&buf, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DatasetSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "NELSON-CH-0006", rows[1][1])
	assert.Equal(t, "6", rows[1][2])
	assert.Len(t, rows[2][6], excelize.TotalCellChars)

	cats, err := f.GetRows(CategorySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"category", "records"}, {"Social & Preventive Medicine", "2"}}, cats)
}

func TestRenderSchema(t *testing.T) {
	ddl, err := RenderSchema(SchemaOptions{ChunkCount: 3})
	require.NoError(t, err)

	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS pediatrics_chunks")
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, ddl, "CHECK (chapter_number > 0)")
	assert.Contains(t, ddl, "CHECK (chunk_index BETWEEN 1 AND 3)")
	assert.Contains(t, ddl, "GENERATED ALWAYS AS (length(content)) VIRTUAL")
	assert.Contains(t, ddl, "idx_pediatrics_chunks_category")

	pg, err := RenderSchema(SchemaOptions{Dialect: "postgres", Table: "chunks", ChunkCount: 4})
	require.NoError(t, err)
	assert.Contains(t, pg, "BIGSERIAL PRIMARY KEY")
	assert.Contains(t, pg, "micro_chunks JSONB")
	assert.Contains(t, pg, "(char_length(content)) STORED")
	assert.Contains(t, pg, "ON chunks (run_id)")

	_, err = RenderSchema(SchemaOptions{Dialect: "oracle", ChunkCount: 3})
	assert.Error(t, err)
	_, err = RenderSchema(SchemaOptions{})
	assert.Error(t, err)

	stmts, err := SchemaStatements(SchemaOptions{ChunkCount: 3})
	require.NoError(t, err)
	require.Len(t, stmts, 4)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE"))
	for _, s := range stmts[1:] {
		assert.True(t, strings.HasPrefix(s, "CREATE INDEX"), s)
	}
}
