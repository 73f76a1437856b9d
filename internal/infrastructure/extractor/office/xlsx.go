package office

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Xlsx renders every sheet as tab separated rows under a sheet header.
type Xlsx struct{}

func NewXlsx() Xlsx { return Xlsx{} }

func (Xlsx) Extensions() []string { return []string{".xlsx"} }

func (Xlsx) Extract(_ context.Context, data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	var out strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		fmt.Fprintf(&out, "# %s\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line != "" {
				out.WriteString(line)
				out.WriteString("\n")
			}
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}
