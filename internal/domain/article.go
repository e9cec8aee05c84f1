package domain

import (
	"fmt"
	"strings"
	"time"
)

// RawArticle is an input record exactly as read from the article store.
type RawArticle struct {
	ID          string                        `json:"article_id"`
	Source      string                        `json:"source"`
	Date        string                        `json:"date"`
	Title       string                        `json:"title"`
	Content     string                        `json:"content"`
	HumanCoding map[string]map[string]float64 `json:"human_coding,omitempty"`
}

// Article is a validated, immutable input article.
type Article struct {
	ID          string
	Source      string
	PublishedAt time.Time
	Title       string
	Content     string
	Coding      *HumanCoding
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// NewArticle validates required fields and parses the date and human coding.
func NewArticle(raw RawArticle) (Article, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Article{}, &ValidationError{Reason: "missing article_id"}
	}

	missing := make([]string, 0, 4)
	if strings.TrimSpace(raw.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(raw.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(raw.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(raw.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return Article{}, &ValidationError{
			ArticleID: id,
			Reason:    "missing required fields: " + strings.Join(missing, ", "),
		}
	}

	published, err := parseDate(raw.Date)
	if err != nil {
		return Article{}, &ValidationError{ArticleID: id, Reason: err.Error()}
	}

	article := Article{
		ID:          id,
		Source:      strings.TrimSpace(raw.Source),
		PublishedAt: published,
		Title:       strings.TrimSpace(raw.Title),
		Content:     raw.Content,
	}

	if raw.HumanCoding != nil {
		coding, err := ParseHumanCoding(raw.HumanCoding)
		if err != nil {
			return Article{}, &ValidationError{ArticleID: id, Reason: fmt.Sprintf("human coding: %v", err)}
		}
		article.Coding = &coding
	}

	return article, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
