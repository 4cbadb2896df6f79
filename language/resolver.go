package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for language resolution.
var (
	// ErrUnsupported indicates a tag that cannot be mapped to a backend code.
	ErrUnsupported = errors.New("language: unsupported language tag")

	// ErrInvalidTag indicates a tag that is not a 2-letter ISO code.
	ErrInvalidTag = errors.New("language: tag must be a 2-letter ISO code")
)

// VersionClass categorizes a backend release for language code handling.
type VersionClass int

const (
	// ClassLegacy covers R/3 4.x and ECC releases, which require
	// single-letter SAP language keys.
	ClassLegacy VersionClass = iota

	// ClassModern covers S/4HANA releases, which accept ISO 639-1 tags.
	ClassModern
)

// String returns the string representation of the version class.
func (c VersionClass) String() string {
	switch c {
	case ClassLegacy:
		return "legacy"
	case ClassModern:
		return "modern"
	default:
		return "unknown"
	}
}

// modernCutoff is the release identifier at which the backend starts
// accepting ISO tags natively (S/4HANA, SAP_BASIS 750).
const modernCutoff = 750

// legacyCodes maps ISO 639-1 tags to single-letter SAP language keys.
// The table is total for every language the legacy class supports.
var legacyCodes = map[string]string{
	"EN": "E", // English
	"DE": "D", // German
	"PL": "L", // Polish
	"FR": "F", // French
	"ES": "S", // Spanish
	"IT": "I", // Italian
	"RU": "R", // Russian
	"JA": "J", // Japanese
	"ZH": "C", // Chinese
	"PT": "P", // Portuguese
	"NL": "N", // Dutch
	"DA": "K", // Danish
	"SV": "V", // Swedish
	"NO": "O", // Norwegian
	"FI": "U", // Finnish
	"CS": "Q", // Czech
	"HU": "H", // Hungarian
	"TR": "T", // Turkish
	"AR": "A", // Arabic
	"HE": "W", // Hebrew
	"TH": "B", // Thai
	"KO": "M", // Korean
}

// ClassifyRelease categorizes a raw backend release identifier, as reported
// by the system-info call (e.g. "46C", "700", "754"). Releases at or above
// the S/4HANA cutoff classify as modern. Unparseable release strings
// classify as legacy, the most restrictive class.
func ClassifyRelease(release string) VersionClass {
	release = strings.TrimSpace(release)
	if len(release) < 2 {
		return ClassLegacy
	}

	// Releases are numeric-prefixed ("46C", "620", "750"). Two-digit
	// prefixes are R/3 era and always legacy.
	n := 0
	digits := 0
	for _, r := range release {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits < 3 {
		return ClassLegacy
	}
	if n >= modernCutoff {
		return ClassModern
	}
	return ClassLegacy
}

// Resolve maps a requested ISO 639-1 tag to the backend language code for
// the given version class. Matching is case-insensitive. Unknown tags
// return ErrUnsupported for both classes; there is no default language.
func Resolve(tag string, class VersionClass) (string, error) {
	norm, err := normalize(tag)
	if err != nil {
		return "", err
	}

	if class == ClassModern {
		// Modern backends take any well-formed ISO tag as-is; normalize
		// already validated the syntax. Membership in the legacy table is
		// not required here, so tags like BG or UK pass through.
		return norm, nil
	}

	code, ok := legacyCodes[norm]
	if !ok {
		return "", fmt.Errorf("%w: %q (%s class)", ErrUnsupported, tag, class)
	}
	return code, nil
}

// Supported returns the sorted set of ISO tags the resolver can map.
func Supported() []string {
	tags := make([]string, 0, len(legacyCodes))
	for tag := range legacyCodes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func normalize(tag string) (string, error) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if len(tag) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	for _, r := range tag {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
	}
	return tag, nil
}
