// Package common provides shared configuration, logging and small utilities.
//
// Message templates use {{placeholder}} syntax. Supported placeholders are
// {{name}}, {{nick}}, {{city}}, {{posts}} and {{followers}}; values come from
// the scraped profile. Unknown placeholders are left unchanged so a typo is
// visible in the sent message rather than silently dropped.
package common

import (
	"regexp"
	"strconv"

	"github.com/ternarybob/mitto/internal/models"
)

// placeholderPattern matches {{placeholder}} references in message templates
var placeholderPattern = regexp.MustCompile(`\{\{([a-z]+)\}\}`)

// RenderMessage replaces all {{placeholder}} references in the template with
// values from the profile. Missing text fields render as "Unknown", missing
// counters as "0".
func RenderMessage(template string, profile models.Profile) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]

		switch key {
		case "name":
			return orUnknown(firstNonEmpty(profile.Name, profile.Nick))
		case "nick":
			return orUnknown(profile.Nick)
		case "city":
			return orUnknown(profile.City)
		case "posts":
			return strconv.Itoa(profile.Posts)
		case "followers":
			return strconv.Itoa(profile.Followers)
		}

		// Unknown placeholder - return unchanged
		return match
	})
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
