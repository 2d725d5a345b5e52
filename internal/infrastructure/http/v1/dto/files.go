package dto

import "strings"

// ParseTags splits a comma separated tags form field. Repeated fields are
// accepted too.
func ParseTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
