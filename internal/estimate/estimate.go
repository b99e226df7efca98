// Package estimate returns rough price ranges for common handyman jobs.
package estimate

import "strings"

// ServiceOther is the matched service when nothing else fits.
const ServiceOther = "other"

// Size tiers.
const (
	SizeSmall       = "small"
	SizeMedium      = "medium"
	SizeLarge       = "large"
	SizeUnspecified = "unspecified"
)

// Disclaimer accompanies every estimate.
const Disclaimer = "Rough estimate only. Final pricing depends on site conditions, scope, and materials."

const fallbackRange = "$100–$300"

// serviceAliases maps each canonical service to the phrases callers use.
var serviceAliases = map[string][]string{
	"lawn":                  {"lawn mowing", "mowing", "grass cut", "yard cut"},
	"mulch":                 {"mulching", "mulch install"},
	"drywall repair":        {"drywall patch", "hole in wall", "wall hole", "sheetrock repair"},
	"door lock replace":     {"replace lock", "change lock", "deadbolt replace", "install lock"},
	"faucet replace":        {"replace faucet", "install faucet", "kitchen faucet", "bath faucet"},
	"toilet unclog":         {"unclog toilet", "clogged toilet", "toilet clog"},
	"toilet repair":         {"running toilet", "toilet leaking", "fix toilet"},
	"light fixture replace": {"replace light fixture", "install light fixture", "ceiling light"},
	"outlet switch replace": {"replace outlet", "replace switch", "outlet not working"},
	"tv mount":              {"mount tv", "tv mounting", "hang tv"},
}

// tiers is a price range per size; "" holds the range used when no size
// was given or the size has no row of its own.
type tiers map[string]string

var pricing = map[string]tiers{
	"lawn":  {"": "$60–$150"},
	"mulch": {"": "$300–$900"},
	"drywall repair": {
		SizeSmall:  "$150–$300",
		SizeMedium: "$300–$650",
		SizeLarge:  "$650–$1,400",
		"":         "$150–$1,400",
	},
	"door lock replace":     {"": "$175–$450"},
	"faucet replace":        {"": "$200–$650"},
	"toilet unclog":         {"": "$125–$225"},
	"toilet repair":         {"": "$150–$350"},
	"light fixture replace": {"": "$175–$550"},
	"outlet switch replace": {"": "$125–$450"},
	"tv mount":              {"": "$150–$450"},
}

// Request is the estimate query.
type Request struct {
	Service string `json:"service"`
	Size    string `json:"size"`
	Details string `json:"details"`
}

// Result is the estimate answer.
type Result struct {
	ServiceRequested string `json:"service_requested"`
	ServiceMatched   string `json:"service_matched"`
	Size             string `json:"size"`
	EstimatedRange   string `json:"estimated_range"`
	NotesReceived    string `json:"notes_received"`
	Disclaimer       string `json:"disclaimer"`
}

func norm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeService maps free text onto a canonical service, or ServiceOther.
func NormalizeService(input string) string {
	s := norm(input)
	if _, ok := pricing[s]; ok {
		return s
	}
	for canonical, aliases := range serviceAliases {
		for _, a := range aliases {
			if s == a {
				return canonical
			}
		}
	}
	return ServiceOther
}

// NormalizeSize maps free text onto a size tier, or "" when unrecognized.
func NormalizeSize(input string) string {
	switch norm(input) {
	case "small", "minor", "s":
		return SizeSmall
	case "medium", "m":
		return SizeMedium
	case "large", "big", "l":
		return SizeLarge
	}
	return ""
}

// PriceRange returns the range for a canonical service and size.
func PriceRange(service, size string) string {
	t, ok := pricing[service]
	if !ok {
		return fallbackRange
	}
	if r, ok := t[size]; ok {
		return r
	}
	return t[""]
}

// Estimate answers req.
func Estimate(req Request) Result {
	service := NormalizeService(req.Service)
	size := NormalizeSize(req.Size)
	res := Result{
		ServiceRequested: req.Service,
		ServiceMatched:   service,
		Size:             size,
		EstimatedRange:   PriceRange(service, size),
		NotesReceived:    req.Details,
		Disclaimer:       Disclaimer,
	}
	if res.Size == "" {
		res.Size = SizeUnspecified
	}
	return res
}
