// Package useragent classifies raw user-agent strings into the categorical
// labels used by visit analytics. The taxonomy of browser and platform names
// is whatever the underlying parser emits and is passed through as-is.
package useragent

import ua "github.com/mileusna/useragent"

// UnknownLabel is the bucket for user agents the parser cannot name.
const UnknownLabel = "unknown"

// Classification is the categorical breakdown of one user-agent string.
type Classification struct {
	Browser string
	OS      string
	Mobile  bool
	Tablet  bool
	Bot     bool
}

// Classifier turns a raw user-agent header into a Classification.
type Classifier interface {
	Classify(userAgent string) Classification
}

// Parser is the default Classifier.
type Parser struct{}

func (Parser) Classify(userAgent string) Classification {
	parsed := ua.Parse(userAgent)

	c := Classification{
		Browser: parsed.Name,
		OS:      parsed.OS,
		Mobile:  parsed.Mobile,
		Tablet:  parsed.Tablet,
		Bot:     parsed.Bot,
	}
	if c.Browser == "" {
		c.Browser = UnknownLabel
	}
	if c.OS == "" {
		c.OS = UnknownLabel
	}

	return c
}
