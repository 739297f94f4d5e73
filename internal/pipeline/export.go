package pipeline

import (
	"corpus/internal/sheets"
	"corpus/pkg/models"
)

// Section table columns.
var SectionColumns = []string{"Số thứ tự", "Tiêu đề", "Số từ", "Nội dung"}

// Chunk table columns.
var ChunkColumns = []string{"Tên File", "Chương", "Tiêu đề Mục", "Độ dài", "Bản Gốc"}

// SectionsTable lays out flat-mode sections one per row.
func SectionsTable(name string, sections []models.Section) *sheets.Table {
	t := sheets.NewTable(name, SectionColumns...)
	for _, s := range sections {
		t.Append(s.Ordinal, s.Title, s.WordCount(), s.Content)
	}
	return t
}

// ChunksTable lays out chapter-mode chunks one per row.
func ChunksTable(name string, chunks []models.Chunk) *sheets.Table {
	t := sheets.NewTable(name, ChunkColumns...)
	for _, c := range chunks {
		t.Append(c.FileName, c.Chapter, c.Title, c.WordCount, c.Text)
	}
	return t
}
