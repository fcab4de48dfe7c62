package brief

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
)

const (
	languageListURL = "https://localizely.com/iso-639-1-list"
	regionListURL   = "https://localizely.com/iso-3166-1-alpha-2-list"
)

// Validate checks the brief shape and its target region. Every problem is
// reported at once through a *domain.ValidationError.
func Validate(b *domain.CampaignBrief) error {
	if b == nil {
		return &domain.ValidationError{Problems: []string{"brief is empty"}}
	}
	var problems []string
	if strings.TrimSpace(b.Name) == "" {
		problems = append(problems, "name is required")
	}
	if err := ValidateRegion(b.TargetRegion); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(b.TargetAudience) == "" {
		problems = append(problems, "targetAudience is required")
	}
	if strings.TrimSpace(b.CampaignMessage) == "" {
		problems = append(problems, "campaignMessage is required")
	}
	if len(b.Products) == 0 {
		problems = append(problems, "products must contain at least one product")
	}
	for i, p := range b.Products {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("products[%d].name is required", i))
		}
		if strings.TrimSpace(p.Description) == "" {
			problems = append(problems, fmt.Sprintf("products[%d].description is required", i))
		}
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}

// ValidateRegion checks a "lang-COUNTRY" code: an ISO 639-1 language subtag
// and an ISO 3166-1 alpha-2 region subtag.
func ValidateRegion(code string) error {
	parts := strings.Split(code, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("targetRegion %q must be in the format 'lang-country', e.g. en-US (languages: %s, countries: %s)",
			code, languageListURL, regionListURL)
	}
	lang, country := parts[0], parts[1]
	if !validLanguage(lang) {
		return fmt.Errorf("targetRegion %q has an invalid language code %q (see %s)", code, lang, languageListURL)
	}
	if !validRegion(country) {
		return fmt.Errorf("targetRegion %q has an invalid country code %q (see %s)", code, country, regionListURL)
	}
	return nil
}

// nonISORegions are known to the CLDR tables but are not assigned ISO 3166-1
// country codes: withdrawn codes that Region.Canonicalize keeps because they
// were split up, plus exceptionally reserved codes.
var nonISORegions = map[string]bool{
	"AN": true, "SU": true, "YU": true, "CS": true, "TP": true,
	"ZR": true, "BU": true, "DD": true, "YD": true, "NT": true,
	"AC": true, "CP": true, "DG": true, "EA": true, "IC": true,
	"TA": true, "EU": true, "EZ": true, "UN": true, "UK": true, "FX": true,
	"ZZ": true,
}

// deprecatedLanguages were withdrawn from ISO 639-1 in favour of he, id, yi,
// jv and ro.
var deprecatedLanguages = map[string]bool{"iw": true, "in": true, "ji": true, "jw": true, "mo": true}

func validLanguage(code string) bool {
	if len(code) != 2 || !isLower(code) || deprecatedLanguages[code] {
		return false
	}
	tag, err := language.Raw.Parse(code)
	if err != nil {
		return false
	}
	// Deprecated codes such as "iw" or "in" canonicalize to their
	// replacements ("he", "id") and are not in ISO 639-1.
	canonical, err := language.Deprecated.Canonicalize(tag)
	if err != nil {
		return false
	}
	base, _ := canonical.Base()
	return base.String() == code
}

func validRegion(code string) bool {
	if len(code) != 2 || !isAlpha(code) {
		return false
	}
	code = strings.ToUpper(code)
	region, err := language.ParseRegion(code)
	if err != nil || region.String() != code {
		return false
	}
	// Macro-regions (EU, UN), reserved codes (AC, IC, EA) and aliases
	// (UK, FX) fail one of these.
	if region.IsPrivateUse() || !region.IsCountry() || region.M49() == 0 || region.Canonicalize() != region {
		return false
	}
	return !nonISORegions[code]
}

func isLower(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
