// Package export writes a user's stored matches to an Excel or CSV file
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/matchbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the matches are written to
const SheetName = "Sheet1"

// Header is the first row of every export
var Header = []string{"#", "VK ID", "Имя", "Фамилия", "Профиль", "Фото", "Добавлен"}

// MatchLister reads matches in insertion order
type MatchLister interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Match, error)
}

// ExportConfig defines the export configuration
type ExportConfig struct {
	FilePath string // Path of the .xlsx or .csv file to write
	UserID   int64
	// Hyperlink makes the profile column clickable in Excel
	Hyperlink bool
}

// DefaultExportConfig returns the default export configuration for a user
func DefaultExportConfig(userID int64) ExportConfig {
	return ExportConfig{
		FilePath:  fmt.Sprintf("matches_%d.xlsx", userID),
		UserID:    userID,
		Hyperlink: true,
	}
}

// ExportResult holds the result of an export operation
type ExportResult struct {
	FilePath string
	Rows     int
}

// ExportMatches writes the user's matches to config.FilePath. The format
// follows the file extension
func ExportMatches(ctx context.Context, lister MatchLister, config ExportConfig) (*ExportResult, error) {
	matches, err := lister.ListByUser(ctx, config.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	if dir := filepath.Dir(config.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		err = WriteCSV(file, matches)
	} else {
		err = WriteExcel(file, matches, config.Hyperlink)
	}
	if err != nil {
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return &ExportResult{FilePath: config.FilePath, Rows: len(matches)}, nil
}

func row(i int, m models.Match) []string {
	created := ""
	if !m.CreatedAt.IsZero() {
		created = m.CreatedAt.Format(time.DateTime)
	}
	return []string{
		strconv.Itoa(i + 1),
		strconv.FormatInt(m.MatchID, 10),
		m.FirstName,
		m.LastName,
		m.ProfileURL,
		m.PhotoURL,
		created,
	}
}

// WriteExcel writes matches as an xlsx workbook
func WriteExcel(w io.Writer, matches []models.Match, hyperlink bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, m := range matches {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i, m)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
		if hyperlink && m.ProfileURL != "" {
			link := fmt.Sprintf("E%d", i+2)
			if err := f.SetCellHyperLink(SheetName, link, m.ProfileURL, "External"); err != nil {
				return fmt.Errorf("failed to link row %d: %w", i+2, err)
			}
		}
	}
	if err := f.SetColWidth(SheetName, "C", "F", 28); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes matches as comma separated values
func WriteCSV(w io.Writer, matches []models.Match) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for i, m := range matches {
		if err := writer.Write(row(i, m)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
