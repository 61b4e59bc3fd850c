package discovery

import (
	"encoding/json"
	"fmt"
	"io"
)

type Formatter struct {
	writer io.Writer
}

func NewFormatter(writer io.Writer) Formatter {
	return Formatter{
		writer: writer,
	}
}

func (f Formatter) Markdown(root string, units []ImageUnit) {
	_, _ = fmt.Fprintf(f.writer, "## Images in `%s`\n\n", root)

	if len(units) == 0 {
		_, _ = fmt.Fprintf(f.writer, "No images found.\n")
		return
	}

	var excluded int
	_, _ = fmt.Fprintf(f.writer, "| ID | Name | Version | Scanned As | Path |\n|---|---|---|---|---|\n")
	for _, unit := range units {
		scannedAs := "oci-dir"
		if unit.Excluded {
			scannedAs = "dir"
			excluded++
		}

		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s | %s |\n", unit.ID(), unit.Name, unit.Version, scannedAs, unit.Path)
	}
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintf(f.writer, "**Total:** %d image(s), %d with excluded media types\n", len(units), excluded)
}

func (f Formatter) JSON(root string, units []ImageUnit) {
	var output struct {
		Root   string      `json:"root"`
		Images []ImageUnit `json:"images"`
	}

	output.Root = root
	output.Images = units
	if output.Images == nil {
		output.Images = []ImageUnit{}
	}

	_ = json.NewEncoder(f.writer).Encode(&output)
}
