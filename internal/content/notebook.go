package content

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// notebookDocument models the subset of the Jupyter notebook format needed to
// recover cell sources. Both nbformat 4 (top-level cells) and the legacy
// worksheet layout are accepted.
type notebookDocument struct {
	Cells      []notebookCell `json:"cells"`
	Worksheets []struct {
		Cells []notebookCell `json:"cells"`
	} `json:"worksheets"`
}

type notebookCell struct {
	CellType string         `json:"cell_type"`
	Source   notebookSource `json:"source"`
	Input    notebookSource `json:"input"`
}

// notebookSource accepts either a single string or a list of line strings,
// both of which appear in notebooks in the wild.
type notebookSource []string

func (source *notebookSource) UnmarshalJSON(raw []byte) error {
	var single string
	if singleError := json.Unmarshal(raw, &single); singleError == nil {
		*source = notebookSource{single}
		return nil
	}
	var lines []string
	if linesError := json.Unmarshal(raw, &lines); linesError != nil {
		return linesError
	}
	*source = notebookSource(lines)
	return nil
}

// convertNotebook renders a .ipynb file as plain text: code cells verbatim,
// markdown and raw cells wrapped in triple-quoted blocks so the result reads
// like a script.
func convertNotebook(path string) (string, error) {
	notebookBytes, readError := os.ReadFile(path)
	if readError != nil {
		return "", readError
	}

	var document notebookDocument
	if decodeError := json.Unmarshal(notebookBytes, &document); decodeError != nil {
		return "", fmt.Errorf("invalid notebook JSON: %w", decodeError)
	}

	cells := document.Cells
	for _, worksheet := range document.Worksheets {
		cells = append(cells, worksheet.Cells...)
	}

	var builder strings.Builder
	for _, cell := range cells {
		cellText := strings.Join(cell.Source, "")
		if cellText == "" {
			cellText = strings.Join(cell.Input, "")
		}
		if strings.TrimSpace(cellText) == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		if cell.CellType == "code" {
			builder.WriteString(cellText)
		} else {
			builder.WriteString("\"\"\"\n")
			builder.WriteString(cellText)
			builder.WriteString("\n\"\"\"")
		}
	}
	return builder.String(), nil
}
