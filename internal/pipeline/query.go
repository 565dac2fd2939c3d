package pipeline

import "strings"

// BaseQuery builds the location-qualified company query. The city is omitted
// when empty; the state code is always present, even if empty.
func BaseQuery(company, city, state string) string {
	if city != "" {
		return company + " " + city + " " + state
	}
	return company + " " + state
}

// SiteQuery scopes base to one candidate site and appends the keyword suffix.
func SiteQuery(site, base, suffix string) string {
	q := "site:" + site + " " + base
	if suffix != "" {
		q += " " + suffix
	}
	return q
}

// hitText joins a hit's title and snippet with a single space.
func hitText(title, snippet string) string {
	return strings.Join([]string{title, snippet}, " ")
}
