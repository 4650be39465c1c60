package generator

import (
	"math/rand/v2"
	"strconv"
)

// ReviewGenerator generates app reviews in the layout
// review_id,app_name,language,review,votes_helpful.
//
// A fraction of rows carry an unusable vote count (InvalidRate) or are cut
// short (ShortRate) so the pipeline's filtering paths get exercised.
type ReviewGenerator struct {
	AppCount    int
	Skew        float64 // Zipf exponent for app popularity; <= 1 means uniform
	InvalidRate float64
	ShortRate   float64

	rand *rand.Rand
	zipf *rand.Zipf
	apps []string
	next int
	row  []string
}

var languages = []string{
	"english",
	"spanish",
	"portuguese",
	"german",
	"french",
	"russian",
	"japanese",
	"schinese",
	"koreana",
	"polish",
}

var phrases = []string{
	"Great game",
	"Not worth the price",
	"Runs badly on my machine, refunded",
	"10/10 would play again",
	"The \"early access\" label is doing a lot of work here",
	"Fun with friends, boring alone",
	"Best soundtrack in years",
	"Crashes every hour\nstill playing it",
	"Too many microtransactions",
	"A hidden gem",
}

var invalidVotes = []string{"-3", "many", "", "4294967296", "1.5", " 7"}

func (g *ReviewGenerator) Init(r *rand.Rand) {
	g.rand = r
	g.next = 0
	if g.AppCount < 1 {
		g.AppCount = 1
	}

	g.apps = make([]string, g.AppCount)
	for i := range g.apps {
		g.apps[i] = "App " + strconv.Itoa(i)
	}

	g.zipf = nil
	if g.Skew > 1 && g.AppCount > 1 {
		g.zipf = rand.NewZipf(r, g.Skew, 1, uint64(g.AppCount-1))
	}

	g.row = make([]string, 5)
}

func (g *ReviewGenerator) Header() []string {
	return []string{"review_id", "app_name", "language", "review", "votes_helpful"}
}

func (g *ReviewGenerator) Row() []string {
	g.next++

	app := g.rand.IntN(len(g.apps))
	if g.zipf != nil {
		app = int(g.zipf.Uint64())
	}

	g.row = g.row[:5]
	g.row[0] = strconv.Itoa(g.next)
	g.row[1] = g.apps[app]
	g.row[2] = languages[g.rand.IntN(len(languages))]
	g.row[3] = phrases[g.rand.IntN(len(phrases))]
	g.row[4] = strconv.Itoa(g.rand.IntN(5000))

	switch roll := g.rand.Float64(); {
	case roll < g.ShortRate:
		return g.row[:3]
	case roll < g.ShortRate+g.InvalidRate:
		g.row[4] = invalidVotes[g.rand.IntN(len(invalidVotes))]
	}

	return g.row
}

func (g *ReviewGenerator) Description() string {
	return "App reviews: review_id,app_name,language,review,votes_helpful"
}

func (g *ReviewGenerator) DefaultCount() int64 {
	return 1e5 // 100,000 rows
}
