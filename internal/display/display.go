// Package display builds the view model of the diagnosis result card.
package display

import (
	"math"
	"strconv"

	"cropcure/internal/diagnosis"
)

// Band is the colour tier of a confidence score
type Band string

// Confidence tiers
const (
	BandHealthy Band = "healthy"
	BandWarning Band = "warning"
	BandDanger  Band = "danger"
)

// Band thresholds, both inclusive
const (
	HealthyThreshold = 80
	WarningThreshold = 60
)

// BandFor maps a confidence score to its colour tier
func BandFor(confidence float64) Band {
	switch {
	case confidence >= HealthyThreshold:
		return BandHealthy
	case confidence >= WarningThreshold:
		return BandWarning
	default:
		return BandDanger
	}
}

// Card is everything the result card template needs
type Card struct {
	Loading bool

	Disease    string
	Icon       string
	Badge      string
	Meaning    string
	Confidence float64
	Band       Band
	// BarWidth is the confidence clamped to 0..100 for the progress bar
	BarWidth float64

	Solution            string
	SolutionUnavailable bool
}

// NewCard renders a result with the embedded catalog
func NewCard(r diagnosis.Result) Card {
	return NewCardWithCatalog(r, diagnosis.DefaultCatalog())
}

// NewCardWithCatalog renders a result with a specific catalog
func NewCardWithCatalog(r diagnosis.Result, c *diagnosis.Catalog) Card {
	p := c.Lookup(r.Disease)
	return Card{
		Disease:             p.Label,
		Icon:                p.Icon,
		Badge:               p.Badge,
		Meaning:             p.Meaning,
		Confidence:          r.Confidence,
		Band:                BandFor(r.Confidence),
		BarWidth:            math.Max(0, math.Min(100, r.Confidence)),
		Solution:            r.Solution,
		SolutionUnavailable: r.SolutionUnavailable && r.Solution == "",
	}
}

// Skeleton is the loading placeholder shown while analysis runs
func Skeleton() Card {
	return Card{Loading: true}
}

// HasSolution reports whether the AI solution block is shown
func (c Card) HasSolution() bool {
	return c.Solution != ""
}

// ConfidenceText formats the score as the card shows it, e.g. "91.5%"
func (c Card) ConfidenceText() string {
	return strconv.FormatFloat(c.Confidence, 'f', -1, 64) + "%"
}
