package domain

import "time"

// SkipKind classifies why an article produced no tally.
type SkipKind string

const (
	SkipValidation SkipKind = "validation"
	SkipProcessing SkipKind = "processing"
)

// SkippedArticle is one entry of a run's skipped report.
type SkippedArticle struct {
	ArticleID string   `json:"article_id"`
	Kind      SkipKind `json:"kind"`
	Reason    string   `json:"reason"`
}

// UndeterminedUnit is a (unit, frame) pair excluded from counting.
type UndeterminedUnit struct {
	UnitIndex int
	Frame     FrameLabel
}

// ArticleResult is the counted outcome of one article.
type ArticleResult struct {
	ArticleID    string
	Units        int
	Exemplars    []Exemplar
	Tally        ArticleTally
	Undetermined []UndeterminedUnit
	Suppressed   int
	// OffContext counts units left out because they name no leadership
	// role while counting is restricted to leadership context.
	OffContext int
}

// RunStatus is the lifecycle state of a corpus run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCanceled  RunStatus = "canceled"
	RunFailed    RunStatus = "failed"
)

// Run summarizes one corpus run as persisted.
type Run struct {
	ID           string     `json:"id"`
	Strategy     string     `json:"strategy"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Articles     int        `json:"articles"`
	Tallied      int        `json:"tallied"`
	Skipped      int        `json:"skipped"`
	Undetermined int        `json:"undetermined"`
	Suppressed   int        `json:"suppressed"`
	MeanICC      *float64   `json:"mean_icc,omitempty"`
}

// TallyRow is one non-zero cell of one article's tally.
type TallyRow struct {
	ArticleID string     `json:"article_id"`
	Frame     FrameLabel `json:"frame"`
	Target    Target     `json:"demographic"`
	Count     int        `json:"count"`
}

// TallyRows flattens a tally into its non-zero cells.
func TallyRows(t ArticleTally) []TallyRow {
	cells := t.Cells()
	rows := make([]TallyRow, 0, len(cells))
	for _, c := range cells {
		rows = append(rows, TallyRow{ArticleID: t.ArticleID(), Frame: c.Frame, Target: c.Target, Count: t.Count(c)})
	}
	return rows
}

// CellAgreement holds the absolute-agreement statistics of one cell.
// Defined is false when the cell had too few articles to compute an ICC.
type CellAgreement struct {
	Frame       FrameLabel `json:"frame"`
	Target      Target     `json:"demographic"`
	N           int        `json:"n"`
	Defined     bool       `json:"defined"`
	ICC         float64    `json:"icc"`
	Lower       float64    `json:"lower"`
	Upper       float64    `json:"upper"`
	ICCk        float64    `json:"icc_k"`
	LowerK      float64    `json:"lower_k"`
	UpperK      float64    `json:"upper_k"`
	MeanAbsDiff float64    `json:"mean_abs_diff"`
	Note        string     `json:"note,omitempty"`
}

// Cell returns the key of the statistics.
func (a CellAgreement) Cell() Cell { return Cell{Frame: a.Frame, Target: a.Target} }

// CoverageGap notes an article left out of agreement statistics.
type CoverageGap struct {
	ArticleID string `json:"article_id"`
	Reason    string `json:"reason"`
}
