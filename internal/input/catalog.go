package input

import (
	"fmt"
	"sort"
	"time"
)

// Builtin generic discount-code stems. These are deliberately
// target-agnostic; event- or site-specific wordlists belong in a file
// (wordlist mode) or in generated output (the generate command).
var catalogStems = []string{
	"WELCOME", "GUEST", "FREE", "VIP", "COMP", "PROMO", "DISCOUNT",
	"EARLYBIRD", "LAUNCH", "PREVIEW", "PRESS", "MEDIA", "STAFF", "CREW",
	"SPEAKER", "SPONSOR", "PARTNER", "FRIENDS", "FAMILY", "STUDENT",
	"COMMUNITY", "VOLUNTEER", "INSIDER", "MEMBER", "SPECIAL", "THANKYOU",
}

var catalogSuffixes = []string{"", "FREE", "GUEST", "VIP", "PASS", "10", "20", "50", "100"}

// PriorityCodes returns the small high-probability tier tested first.
func PriorityCodes() []string {
	year := time.Now().Year()
	codes := []string{}
	for _, stem := range []string{"WELCOME", "GUEST", "FREE", "VIP", "EARLYBIRD", "PRESS", "SPEAKER", "FRIENDS"} {
		codes = append(codes,
			stem,
			fmt.Sprintf("%s%d", stem, year),
			fmt.Sprintf("%s%d", stem, year%100),
		)
	}
	return codes
}

// CatalogCodes returns the full builtin pattern catalog, sorted and
// deduplicated, priority stems included.
func CatalogCodes() []string {
	year := time.Now().Year()
	yearSuffixes := []string{
		fmt.Sprintf("%d", year),
		fmt.Sprintf("%d", year%100),
		fmt.Sprintf("%d", year-1),
	}

	seen := make(map[string]struct{})
	var codes []string
	add := func(code string) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for _, stem := range catalogStems {
		for _, suffix := range catalogSuffixes {
			add(stem + suffix)
		}
		for _, suffix := range yearSuffixes {
			add(stem + suffix)
		}
	}
	sort.Strings(codes)
	return codes
}

// NewPrioritySource yields only the priority tier.
func NewPrioritySource() *SliceSource {
	return NewSliceSource(PriorityCodes(), OriginPriority)
}

// NewCatalogSource yields the priority tier first, then the full catalog.
func NewCatalogSource() *SliceSource {
	return NewTieredSource(PriorityCodes(), CatalogCodes())
}
