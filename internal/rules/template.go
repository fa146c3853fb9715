package rules

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// FillTemplate replaces {{name}} placeholders with model-extracted
// argument values. Placeholders without a matching arg are left intact
// so a reviewer sees what is missing instead of silently sending a
// blank.
func FillTemplate(s string, args map[string]string) string {
	if len(args) == 0 {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := args[name]; ok {
			return value
		}
		return match
	})
}

// fillAction applies template args to the content-bearing fields of an
// action.
func fillAction(a Action, args map[string]string) Action {
	a.Subject = FillTemplate(a.Subject, args)
	a.Content = FillTemplate(a.Content, args)
	return a
}
