package excel

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/studybot/internal/mcq"
	"github.com/example/studybot/pkg/models"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv
var ErrUnsupportedFormat = errors.New("unsupported file format, send .xlsx or .csv")

// ImportConfig defines the column layout of an import file
type ImportConfig struct {
	SubjectColumn     string // Column with the subject
	QuestionColumn    string // Column with the question text
	ChoiceColumns     [4]string
	AnswerColumn      string // Column with the correct letter
	ExplanationColumn string // Column with the explanation
	SheetName         string // Sheet to import, empty means the first sheet
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the layout
// Subject | Question | A | B | C | D | Answer | Explanation with a header row
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SubjectColumn:     "A",
		QuestionColumn:    "B",
		ChoiceColumns:     [4]string{"C", "D", "E", "F"},
		AnswerColumn:      "G",
		ExplanationColumn: "H",
		StartRow:          2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	Questions      []models.Question
	TotalProcessed int
	Skipped        int
	Errors         []string
}

// ImportQuestions reads questions from an uploaded spreadsheet. The format is
// chosen by the file extension of name. Bad rows are skipped and reported in
// Errors; only an unreadable file is an error.
func ImportQuestions(r io.Reader, name string, config ImportConfig) (*ImportResult, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return importFromCSV(r, config)
	case ".xlsx", ".xlsm":
		return importFromExcel(r, config)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Supported reports whether name has an importable extension
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

func importFromExcel(r io.Reader, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		processRow(row, config, result, i+1)
	}
	return result, nil
}

func importFromCSV(r io.Reader, config ImportConfig) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	// Excel writes a byte order mark in front of UTF-8 CSV exports
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		processRow(row, config, result, rowNum)
	}
	return result, nil
}

// processRow turns one row into a question, recording why it was skipped
func processRow(row []string, config ImportConfig, result *ImportResult, rowNum int) {
	if blankRow(row) {
		return
	}
	result.TotalProcessed++

	prompt := cell(row, config.QuestionColumn)
	if prompt == "" {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: question cannot be empty", rowNum))
		return
	}

	var options [4]string
	for i, col := range config.ChoiceColumns {
		options[i] = cell(row, col)
	}
	q, err := mcq.NewQuestion(cell(row, config.SubjectColumn), prompt, options,
		cell(row, config.AnswerColumn), cell(row, config.ExplanationColumn))
	if err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		return
	}
	result.Questions = append(result.Questions, q)
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
