package report

import (
	"fmt"

	"pkg.jsn.cam/topreduce/pkg/topreduce"
)

// Format names a report layout.
type Format string

const (
	// FormatStandard is the layout of topreduce.Report.
	FormatStandard Format = "standard"
	// FormatReviews is the game review layout: games and languages keyed
	// the way review dump tooling expects, tagged with a submitter ID.
	FormatReviews Format = "reviews"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatStandard, FormatReviews:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ReviewReport is a Report in the game review layout.
type ReviewReport struct {
	ID           uint32        `json:"padron"`
	TopGames     []TopGame     `json:"top_games"`
	TopLanguages []TopLanguage `json:"top_languages"`
}

type TopGame struct {
	Game        string         `json:"game"`
	ReviewCount int            `json:"review_count"`
	Languages   []GameLanguage `json:"languages"`
}

type GameLanguage struct {
	Language       string `json:"language"`
	ReviewCount    int    `json:"review_count"`
	TopReview      string `json:"top_review"`
	TopReviewVotes uint32 `json:"top_review_votes"`
}

type TopLanguage struct {
	Language    string   `json:"language"`
	ReviewCount int      `json:"review_count"`
	TopReviews  []Review `json:"top_reviews"`
}

type Review struct {
	Review string `json:"review"`
	Votes  uint32 `json:"votes"`
}

// ToReviews converts r to the review layout, keeping its order.
func ToReviews(r *topreduce.Report, id uint32) *ReviewReport {
	out := &ReviewReport{
		ID:           id,
		TopGames:     make([]TopGame, 0, len(r.TopEntities)),
		TopLanguages: make([]TopLanguage, 0, len(r.TopCategories)),
	}

	for _, e := range r.TopEntities {
		game := TopGame{
			Game:        e.Entity,
			ReviewCount: e.Count,
			Languages:   make([]GameLanguage, 0, len(e.Categories)),
		}
		for _, c := range e.Categories {
			game.Languages = append(game.Languages, GameLanguage{
				Language:       c.Category,
				ReviewCount:    c.Count,
				TopReview:      c.TopText,
				TopReviewVotes: c.TopWeight,
			})
		}
		out.TopGames = append(out.TopGames, game)
	}

	for _, c := range r.TopCategories {
		lang := TopLanguage{
			Language:    c.Category,
			ReviewCount: c.Count,
			TopReviews:  make([]Review, 0, len(c.TopRecords)),
		}
		for _, rec := range c.TopRecords {
			lang.TopReviews = append(lang.TopReviews, Review{Review: rec.Text, Votes: rec.Weight})
		}
		out.TopLanguages = append(out.TopLanguages, lang)
	}

	return out
}

// WriteFormat writes r in the given layout. id is only used by
// FormatReviews.
func WriteFormat(dir, name string, r *topreduce.Report, format Format, id uint32) (string, error) {
	switch format {
	case FormatStandard, "":
		return Write(dir, name, r)
	case FormatReviews:
		return writeJSON(dir, name, ToReviews(r, id))
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
