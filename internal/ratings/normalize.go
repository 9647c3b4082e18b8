package ratings

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/al0nec0der/StrIve-sub000/internal/omdb"
)

const (
	sourceIMDb           = "Internet Movie Database"
	sourceRottenTomatoes = "Rotten Tomatoes"
	sourceMetacritic     = "Metacritic"
)

// Normalize converts a provider payload into canonical rating text and
// numeric forms. Identity and timestamp fields are left for the caller.
func Normalize(resp *omdb.Response) Record {
	rec := Record{
		Source:          SourceProvider,
		PrimaryRating:   Unavailable,
		SecondaryRating: Unavailable,
		TertiaryRating:  Unavailable,
		Awards:          Unavailable,
		Plot:            Unavailable,
		Title:           Unavailable,
		Year:            Unavailable,
	}
	if resp == nil {
		return rec
	}

	primary, ok := firstParsed(parseTenScale, ratingValue(resp, sourceIMDb), resp.IMDbRating)
	if ok {
		rec.PrimaryScore = primary
		rec.PrimaryRating = formatTenScale(primary)
	}
	if secondary, ok := parsePercent(ratingValue(resp, sourceRottenTomatoes)); ok {
		rec.SecondaryScore = secondary
		rec.SecondaryRating = fmt.Sprintf("%d%%", secondary)
	}
	if tertiary, ok := firstParsed(parseHundredScale, ratingValue(resp, sourceMetacritic), resp.Metascore); ok {
		rec.TertiaryScore = tertiary
		rec.TertiaryRating = fmt.Sprintf("%d/100", tertiary)
	}
	rec.VoteCount = parseVotes(resp.IMDbVotes)
	rec.Awards = orUnavailable(resp.Awards)
	rec.Plot = orUnavailable(resp.Plot)
	rec.Title = orUnavailable(resp.Title)
	rec.Year = orUnavailable(resp.Year)
	if id := strings.TrimSpace(resp.IMDbID); id != "" && !isMissing(id) {
		rec.ExternalID = id
	}
	return rec
}

func ratingValue(resp *omdb.Response, source string) string {
	v, _ := resp.RatingFor(source)
	return v
}

func firstParsed[T any](parse func(string) (T, bool), values ...string) (T, bool) {
	for _, v := range values {
		if out, ok := parse(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

func isMissing(value string) bool {
	v := strings.ToUpper(strings.TrimSpace(value))
	return v == "" || v == "N/A" || v == "NA" || v == "-"
}

func orUnavailable(value string) string {
	if isMissing(value) {
		return Unavailable
	}
	return strings.TrimSpace(value)
}

func parseNumber(value string) (float64, bool) {
	v := strings.TrimSpace(value)
	if isMissing(v) {
		return 0, false
	}
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseFraction splits "n/d" into its value and denominator. A bare number
// reports a denominator of 0.
func parseFraction(value string) (float64, float64, bool) {
	num, den, hasSlash := strings.Cut(strings.TrimSpace(value), "/")
	n, ok := parseNumber(num)
	if !ok {
		return 0, 0, false
	}
	if !hasSlash {
		return n, 0, true
	}
	d, ok := parseNumber(den)
	if !ok || d <= 0 {
		return 0, 0, false
	}
	return n, d, true
}

// parseTenScale accepts "9.0/10", "8/10", "82/100", "7,5" and "7.85".
func parseTenScale(value string) (float64, bool) {
	n, d, ok := parseFraction(value)
	if !ok {
		return 0, false
	}
	score := n
	if d > 0 {
		score = n / d * 10
	}
	if score < 0 || score > 10 {
		return 0, false
	}
	return math.Round(score*10) / 10, true
}

// parseHundredScale accepts "80/100", "80", "8.2/10" and "8,2/10".
func parseHundredScale(value string) (int, bool) {
	n, d, ok := parseFraction(value)
	if !ok {
		return 0, false
	}
	score := n
	if d > 0 {
		score = n / d * 100
	}
	if score < 0 || score > 100 {
		return 0, false
	}
	return int(math.Round(score)), true
}

// parsePercent accepts "97%", "97", "97/100" and "9.7/10".
func parsePercent(value string) (int, bool) {
	return parseHundredScale(strings.TrimSuffix(strings.TrimSpace(value), "%"))
}

func parseVotes(value string) int {
	v := strings.TrimSpace(value)
	if isMissing(v) {
		return 0
	}
	v = strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(v)
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatTenScale(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64) + "/10"
}
