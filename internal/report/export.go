package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mjf789/spam-news/internal/agreement"
	"github.com/mjf789/spam-news/internal/domain"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Output bundles everything a run exports.
type Output struct {
	Run       domain.Run              `json:"run"`
	Summary   CorpusSummary           `json:"summary"`
	Tallies   []domain.TallyRow       `json:"tallies"`
	Exemplars []domain.Exemplar       `json:"exemplars,omitempty"`
	Agreement *agreement.Report       `json:"agreement,omitempty"`
	Skipped   []domain.SkippedArticle `json:"skipped"`
}

// Writer writes run outputs into a directory.
type Writer struct {
	dir     string
	formats []Format
}

// NewWriter validates formats. The directory is created on first write.
func NewWriter(dir string, formats []string) (*Writer, error) {
	if dir == "" {
		return nil, &domain.ConfigurationError{Field: "output.dir", Reason: "must not be empty"}
	}
	w := &Writer{dir: dir}
	for _, f := range formats {
		switch Format(f) {
		case FormatCSV, FormatJSON:
			w.formats = append(w.formats, Format(f))
		default:
			return nil, &domain.ConfigurationError{Field: "output.formats", Reason: fmt.Sprintf("unknown format %q", f)}
		}
	}
	return w, nil
}

// Write emits every configured format and returns the written paths.
func (w *Writer) Write(out Output) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	for _, f := range w.formats {
		switch f {
		case FormatCSV:
			files := []csvFile{
				{"tallies.csv", func(wr io.Writer) error { return WriteTalliesCSV(wr, out.Tallies) }},
				{"summary.csv", func(wr io.Writer) error { return WriteSummaryCSV(wr, out.Summary) }},
				{"skipped.csv", func(wr io.Writer) error { return WriteSkippedCSV(wr, out.Skipped) }},
			}
			if out.Agreement != nil {
				files = append(files, csvFile{"agreement.csv", func(wr io.Writer) error { return WriteAgreementCSV(wr, out.Agreement.Cells) }})
			}
			for _, file := range files {
				path := filepath.Join(w.dir, file.name)
				if err := writeFile(path, file.write); err != nil {
					return paths, err
				}
				paths = append(paths, path)
			}
		case FormatJSON:
			path := filepath.Join(w.dir, "report.json")
			if err := writeFile(path, func(wr io.Writer) error { return WriteJSON(wr, out) }); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

type csvFile struct {
	name  string
	write func(io.Writer) error
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteTalliesCSV writes one row per non-zero (article, frame, demographic).
func WriteTalliesCSV(w io.Writer, rows []domain.TallyRow) error {
	records := [][]string{{"article_id", "frame", "demographic", "count"}}
	for _, r := range rows {
		records = append(records, []string{r.ArticleID, string(r.Frame), string(r.Target), strconv.Itoa(r.Count)})
	}
	return writeCSV(w, records)
}

// WriteSummaryCSV writes the corpus cell summary.
func WriteSummaryCSV(w io.Writer, s CorpusSummary) error {
	records := [][]string{{"frame", "demographic", "total", "articles", "rate", "share"}}
	for _, c := range s.Cells {
		records = append(records, []string{
			string(c.Frame), string(c.Target),
			strconv.Itoa(c.Total), strconv.Itoa(c.Articles),
			formatFloat(c.Rate), formatFloat(c.Share),
		})
	}
	return writeCSV(w, records)
}

// WriteAgreementCSV writes per-cell agreement statistics.
func WriteAgreementCSV(w io.Writer, cells []domain.CellAgreement) error {
	records := [][]string{{
		"frame", "demographic", "n", "defined", "icc", "lower", "upper",
		"icc_k", "lower_k", "upper_k", "mean_abs_diff", "note",
	}}
	for _, c := range cells {
		row := []string{string(c.Frame), string(c.Target), strconv.Itoa(c.N), strconv.FormatBool(c.Defined)}
		if c.Defined {
			row = append(row,
				formatFloat(c.ICC), formatFloat(c.Lower), formatFloat(c.Upper),
				formatFloat(c.ICCk), formatFloat(c.LowerK), formatFloat(c.UpperK),
			)
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		row = append(row, formatFloat(c.MeanAbsDiff), c.Note)
		records = append(records, row)
	}
	return writeCSV(w, records)
}

// WriteSkippedCSV writes the skipped-article report.
func WriteSkippedCSV(w io.Writer, skipped []domain.SkippedArticle) error {
	records := [][]string{{"article_id", "kind", "reason"}}
	for _, s := range skipped {
		records = append(records, []string{s.ArticleID, string(s.Kind), s.Reason})
	}
	return writeCSV(w, records)
}

// WriteJSON writes the whole output as indented JSON.
func WriteJSON(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
