package autorename

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type dateField int

const (
	fieldYear dateField = iota
	fieldYear2
	fieldMonth
	fieldMonthName
	fieldDay
	fieldHour24
	fieldHour12
	fieldMinute
	fieldSecond
	fieldFraction
	fieldMeridiem
)

// DatePattern matches a whole file base name written with Unicode date
// tokens (yyyy-MM-dd HH-mm-ss, 'Match' yyyyMMdd_HHmmss, ...).
type DatePattern struct {
	source string
	re     *regexp.Regexp
	fields []dateField
}

// CompileDatePattern compiles a date-fns style pattern. Supported tokens are
// yyyy yy MM M MMM MMMM dd d HH H hh h mm m ss s S..SSSSSSSSS and a; letters
// outside quotes that are not tokens are rejected. Text inside single quotes
// is literal and '' is a quote character.
func CompileDatePattern(pattern string) (*DatePattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, validationErrorf("empty date pattern")
	}
	var (
		expr   strings.Builder
		fields []dateField
		seen   = make(map[dateField]bool)
	)
	expr.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			if i+1 < len(runes) && runes[i+1] == '\'' {
				expr.WriteString("'")
				i += 2
				continue
			}
			end := i + 1
			var literal strings.Builder
			for ; end < len(runes); end++ {
				if runes[end] != '\'' {
					literal.WriteRune(runes[end])
					continue
				}
				if end+1 < len(runes) && runes[end+1] == '\'' {
					literal.WriteRune('\'')
					end++
					continue
				}
				break
			}
			if end >= len(runes) {
				return nil, validationErrorf("date pattern %q has an unterminated quote", pattern)
			}
			expr.WriteString(regexp.QuoteMeta(literal.String()))
			i = end + 1
		case isASCIILetter(r):
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			token := string(runes[i:j])
			fragment, field, err := tokenExpr(token)
			if err != nil {
				return nil, validationErrorf("date pattern %q: %v", pattern, err)
			}
			if seen[field] {
				return nil, validationErrorf("date pattern %q repeats token %q", pattern, token)
			}
			seen[field] = true
			expr.WriteString("(" + fragment + ")")
			fields = append(fields, field)
			i = j
		default:
			expr.WriteString(regexp.QuoteMeta(string(r)))
			i++
		}
	}
	expr.WriteString("$")

	if !(seen[fieldYear] || seen[fieldYear2]) || !(seen[fieldMonth] || seen[fieldMonthName]) || !seen[fieldDay] {
		return nil, validationErrorf("date pattern %q must include year, month and day", pattern)
	}
	if seen[fieldHour24] && seen[fieldHour12] {
		return nil, validationErrorf("date pattern %q mixes 12 and 24 hour tokens", pattern)
	}
	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, wrapValidation(fmt.Errorf("date pattern %q: %w", pattern, err))
	}
	return &DatePattern{source: pattern, re: re, fields: fields}, nil
}

// CompileDatePatterns compiles every pattern, failing on the first invalid one.
func CompileDatePatterns(patterns []string) ([]*DatePattern, error) {
	out := make([]*DatePattern, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := CompileDatePattern(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}

func (p *DatePattern) String() string {
	return p.source
}

func tokenExpr(token string) (string, dateField, error) {
	switch token {
	case "yyyy":
		return `\d{4}`, fieldYear, nil
	case "yy":
		return `\d{2}`, fieldYear2, nil
	case "MM":
		return `\d{2}`, fieldMonth, nil
	case "M":
		return `\d{1,2}`, fieldMonth, nil
	case "MMM", "MMMM":
		return `[A-Za-z]{3,9}`, fieldMonthName, nil
	case "dd":
		return `\d{2}`, fieldDay, nil
	case "d":
		return `\d{1,2}`, fieldDay, nil
	case "HH":
		return `\d{2}`, fieldHour24, nil
	case "H":
		return `\d{1,2}`, fieldHour24, nil
	case "hh":
		return `\d{2}`, fieldHour12, nil
	case "h":
		return `\d{1,2}`, fieldHour12, nil
	case "mm":
		return `\d{2}`, fieldMinute, nil
	case "m":
		return `\d{1,2}`, fieldMinute, nil
	case "ss":
		return `\d{2}`, fieldSecond, nil
	case "s":
		return `\d{1,2}`, fieldSecond, nil
	case "a":
		return `[AaPp][Mm]`, fieldMeridiem, nil
	}
	if strings.Trim(token, "S") == "" && len(token) <= 9 {
		return fmt.Sprintf(`\d{%d}`, len(token)), fieldFraction, nil
	}
	return "", 0, fmt.Errorf("unsupported token %q", token)
}

// Parse extracts the timestamp from name, interpreted in loc. It reports
// false when name does not match the whole pattern or names an impossible
// date.
func (p *DatePattern) Parse(name string, loc *time.Location) (time.Time, bool) {
	groups := p.re.FindStringSubmatch(name)
	if groups == nil {
		return time.Time{}, false
	}
	var (
		year, day, hour, minute, second, nanos int
		month                                  time.Month
		pm, hasMeridiem                        bool
	)
	for i, field := range p.fields {
		value := groups[i+1]
		switch field {
		case fieldMonthName:
			m, ok := parseMonthName(value)
			if !ok {
				return time.Time{}, false
			}
			month = m
			continue
		case fieldMeridiem:
			hasMeridiem = true
			pm = strings.EqualFold(value, "pm")
			continue
		case fieldFraction:
			n, _ := strconv.Atoi(value)
			for range 9 - len(value) {
				n *= 10
			}
			nanos = n
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return time.Time{}, false
		}
		switch field {
		case fieldYear:
			year = n
		case fieldYear2:
			year = 2000 + n
		case fieldMonth:
			month = time.Month(n)
		case fieldDay:
			day = n
		case fieldHour24:
			if n > 23 {
				return time.Time{}, false
			}
			hour = n
		case fieldHour12:
			if n < 1 || n > 12 {
				return time.Time{}, false
			}
			hour = n
		case fieldMinute:
			minute = n
		case fieldSecond:
			second = n
		}
	}
	if hasMeridiem && hour <= 12 {
		switch {
		case pm && hour < 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
	}
	if month < time.January || month > time.December || day < 1 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, month, day, hour, minute, second, nanos, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// ParseVideoTimestamp tries each pattern in order against the file's base
// name without extension and returns the first successful parse.
func ParseVideoTimestamp(fileName string, patterns []*DatePattern, loc *time.Location) (time.Time, bool) {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, pattern := range patterns {
		if t, ok := pattern.Parse(base, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseMonthName(value string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(value, name) || strings.EqualFold(value, name[:3]) {
			return m, true
		}
	}
	return 0, false
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
