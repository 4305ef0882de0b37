// Package prefs implements the preference matcher: a pure function from
// a parsed business plan and an institution's stored preferences to a
// weighted match score with per-dimension breakdown.
package prefs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dengjianbo3/magellan/pkg/models"
)

// MatchThreshold is the weighted score required for a proceed verdict.
const MatchThreshold = 60.0

// neutralScore is used when the BP lacks the data to judge a dimension.
const neutralScore = 50.0

// Dimension weights. They sum to 1.0.
const (
	weightIndustry   = 0.30
	weightStage      = 0.20
	weightGeography  = 0.10
	weightAmount     = 0.15
	weightTeamSize   = 0.10
	weightHasRevenue = 0.075
	weightHasProduct = 0.075
)

// Match scores a business plan against institution preferences.
// An exclusion-list hit dominates: the result is an abort
// recommendation regardless of the weighted score.
func Match(bp *models.BPStructuredData, prefs *models.InstitutionPreferences) *models.PreferenceMatchResult {
	result := &models.PreferenceMatchResult{}
	excluded := false

	add := func(name string, weight, score float64, reason string) {
		result.Dimensions = append(result.Dimensions, models.DimensionScore{
			Dimension: name,
			Weight:    weight,
			Score:     score,
			Reason:    reason,
		})
		result.Score += weight * score
		label := name
		if reason != "" {
			label = fmt.Sprintf("%s: %s", name, reason)
		}
		if score >= 100 {
			result.MatchedCriteria = append(result.MatchedCriteria, name)
		} else {
			result.MismatchedCriteria = append(result.MismatchedCriteria, label)
		}
	}

	// Industry. Exclusion dominates everything else.
	indScore, indReason := neutralScore, "industry not in focus list"
	switch {
	case bp.Industry == "":
		indReason = "industry unknown"
	case containsFold(prefs.ExcludeIndustries, bp.Industry):
		indScore, indReason = 0, "industry in exclusion list"
		excluded = true
	case containsFold(prefs.FocusIndustries, bp.Industry):
		indScore, indReason = 100, ""
	}
	add("industry", weightIndustry, indScore, indReason)

	// Stage.
	stageScore, stageReason := 0.0, "stage not preferred"
	switch {
	case len(prefs.PreferredStages) == 0:
		stageScore, stageReason = 100, ""
	case bp.Stage == "":
		stageScore, stageReason = neutralScore, "stage unknown"
	case containsFold(prefs.PreferredStages, bp.Stage):
		stageScore, stageReason = 100, ""
	}
	add("stage", weightStage, stageScore, stageReason)

	// Geography.
	geoScore, geoReason := 0.0, "geography not preferred"
	switch {
	case len(prefs.Geographies) == 0:
		geoScore, geoReason = 100, ""
	case bp.Geography == "":
		geoScore, geoReason = neutralScore, "geography unknown"
	case containsFold(prefs.Geographies, bp.Geography):
		geoScore, geoReason = 100, ""
	}
	add("geography", weightGeography, geoScore, geoReason)

	// Investment amount: 100 inside [min,max], linear taper to 0 at ±20%.
	amtScore, amtReason := amountScore(bp.FundingRequest, prefs.MinInvestment, prefs.MaxInvestment)
	add("investment_amount", weightAmount, amtScore, amtReason)

	// Team size.
	teamScore, teamReason := 100.0, ""
	if prefs.MinTeamSize > 0 {
		switch {
		case len(bp.Team) == 0:
			teamScore, teamReason = neutralScore, "team size unknown"
		case len(bp.Team) < prefs.MinTeamSize:
			teamScore, teamReason = 0, fmt.Sprintf("team of %d below minimum %d", len(bp.Team), prefs.MinTeamSize)
		}
	}
	add("team_size", weightTeamSize, teamScore, teamReason)

	// Revenue / product requirements.
	revScore, revReason := 100.0, ""
	if prefs.RequireRevenue && !bp.HasRevenue {
		revScore, revReason = 0, "revenue required but not present"
	}
	add("has_revenue", weightHasRevenue, revScore, revReason)

	prodScore, prodReason := 100.0, ""
	if prefs.RequireProduct && !bp.HasProduct {
		prodScore, prodReason = 0, "product required but not present"
	}
	add("has_product", weightHasProduct, prodScore, prodReason)

	if result.Score > 100 {
		result.Score = 100
	}

	result.Match = result.Score >= MatchThreshold && !excluded
	if result.Match {
		result.Recommendation = models.RecommendProceed
	} else {
		result.Recommendation = models.RecommendAbort
		for _, d := range result.Dimensions {
			if d.Score < 100 && d.Reason != "" {
				result.MismatchReasons = append(result.MismatchReasons, d.Reason)
			}
		}
	}
	return result
}

// amountScore scores the funding request against [min,max] with a
// linear taper over ±20% outside the range.
func amountScore(funding string, min, max float64) (float64, string) {
	if min <= 0 && max <= 0 {
		return 100, ""
	}
	amount, ok := ParseAmount(funding)
	if !ok {
		return neutralScore, "funding request unknown"
	}
	if min > 0 && amount < min {
		floor := min * 0.8
		if amount <= floor {
			return 0, fmt.Sprintf("funding request %.0f below minimum %.0f", amount, min)
		}
		frac := (amount - floor) / (min - floor)
		return frac * 100, fmt.Sprintf("funding request %.0f near minimum %.0f", amount, min)
	}
	if max > 0 && amount > max {
		ceil := max * 1.2
		if amount >= ceil {
			return 0, fmt.Sprintf("funding request %.0f above maximum %.0f", amount, max)
		}
		frac := (ceil - amount) / (ceil - max)
		return frac * 100, fmt.Sprintf("funding request %.0f near maximum %.0f", amount, max)
	}
	return 100, ""
}

// ParseAmount extracts a numeric value from amount strings like
// "$5M", "12,000,000", "3.5 million USD". Returns false when no number
// can be recognized.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")

	var numPart strings.Builder
	var rest string
	seenDigit := false
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			numPart.WriteRune(r)
			seenDigit = true
			continue
		}
		if !seenDigit {
			continue // skip currency symbols and prefixes
		}
		rest = s[i:]
		break
	}
	if !seenDigit {
		return 0, false
	}
	value, err := strconv.ParseFloat(numPart.String(), 64)
	if err != nil {
		return 0, false
	}

	rest = strings.TrimSpace(rest)
	switch {
	case strings.HasPrefix(rest, "k") || strings.HasPrefix(rest, "thousand"):
		value *= 1e3
	case strings.HasPrefix(rest, "m") || strings.HasPrefix(rest, "million"):
		value *= 1e6
	case strings.HasPrefix(rest, "b") || strings.HasPrefix(rest, "billion"):
		value *= 1e9
	}
	return value, true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
		// Substring match covers "bio" excluding "biotech".
		if item != "" && strings.Contains(strings.ToLower(v), strings.ToLower(strings.TrimSpace(item))) {
			return true
		}
	}
	return false
}
