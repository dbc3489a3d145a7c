package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var errNoObject = errors.New("no JSON object found")

// ExtractNutrition reads a nutrition record out of free model text. Code
// fences are stripped, then each balanced {...} span is tried in order until
// one decodes into a valid record.
func ExtractNutrition(raw string) (*NutritionInfo, error) {
	text := stripFences(raw)

	lastErr := errNoObject
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '{')
		if j < 0 {
			break
		}
		start := i + j
		if end, ok := scanObject(text, start); ok {
			info, err := parseNutrition(text[start:end])
			if err == nil {
				return info, nil
			}
			lastErr = err
		}
		i = start + 1
	}
	return nil, lastErr
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Drops the opening marker along with any language tag.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```"), "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// scanObject returns the end offset of the balanced object opening at start.
// Braces inside JSON strings are ignored.
func scanObject(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

type rawNutrition struct {
	FoodName    string   `json:"food_name"`
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fat         *float64 `json:"fat"`
	Fiber       *float64 `json:"fiber"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
}

func parseNutrition(span string) (*NutritionInfo, error) {
	var raw rawNutrition
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("decoding nutrition object: %w", err)
	}

	info := &NutritionInfo{
		FoodName:    strings.TrimSpace(raw.FoodName),
		Description: strings.TrimSpace(raw.Description),
	}
	if info.FoodName == "" {
		return nil, errors.New("food_name is empty")
	}

	fields := []struct {
		name     string
		value    *float64
		required bool
		dst      *int
	}{
		{"calories", raw.Calories, true, &info.Calories},
		{"protein", raw.Protein, true, &info.Protein},
		{"carbs", raw.Carbs, true, &info.Carbs},
		{"fat", raw.Fat, true, &info.Fat},
		{"fiber", raw.Fiber, false, &info.Fiber},
	}
	for _, f := range fields {
		if f.value == nil {
			if f.required {
				return nil, fmt.Errorf("%s is missing", f.name)
			}
			continue
		}
		n := math.Round(*f.value)
		if n < 0 || math.IsNaN(n) || n > math.MaxInt32 {
			return nil, fmt.Errorf("%s out of range: %v", f.name, *f.value)
		}
		*f.dst = int(n)
	}

	for _, s := range raw.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			info.Suggestions = append(info.Suggestions, s)
		}
	}
	if len(info.Suggestions) == 0 {
		return nil, errors.New("no suggestions")
	}

	return info, nil
}
