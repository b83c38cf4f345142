package ffmpeg

import (
	"fmt"
	"strings"
)

// URLPlaceholder is the argv token replaced with the resolved upstream URL.
const URLPlaceholder = "[URL]"

// Tokenize splits an argument template into argv tokens, respecting single
// and double quotes and backslash escapes. Quotes group text into one token
// and are stripped; everything else passes through verbatim.
func Tokenize(s string) []string {
	var result []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	escaped := false
	tokenOpen := false

	for _, r := range s {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		if r == '\\' {
			escaped = true
			tokenOpen = true
			continue
		}

		if r == '"' || r == '\'' {
			if !inQuote {
				inQuote = true
				quoteChar = r
				tokenOpen = true
			} else if r == quoteChar {
				inQuote = false
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if (r == ' ' || r == '\t') && !inQuote {
			if tokenOpen || current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
				tokenOpen = false
			}
			continue
		}

		current.WriteRune(r)
	}

	if tokenOpen || current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// SubstituteURL replaces every token that is exactly URLPlaceholder with
// url. All other tokens are preserved unchanged, including tokens that
// merely contain the placeholder as a substring.
func SubstituteURL(argv []string, url string) []string {
	out := make([]string, len(argv))
	for i, tok := range argv {
		if tok == URLPlaceholder {
			out[i] = url
		} else {
			out[i] = tok
		}
	}
	return out
}

// InsertAfterInput inserts extra tokens immediately after the "-i <input>"
// pair. Returns an error when the argv has no -i flag with an argument.
func InsertAfterInput(argv, extra []string) ([]string, error) {
	if len(extra) == 0 {
		return argv, nil
	}
	for i, tok := range argv {
		if tok == "-i" && i+1 < len(argv) {
			out := make([]string, 0, len(argv)+len(extra))
			out = append(out, argv[:i+2]...)
			out = append(out, extra...)
			out = append(out, argv[i+2:]...)
			return out, nil
		}
	}
	return nil, fmt.Errorf("argv template has no -i input to anchor extra args")
}

// BuildArgv tokenizes an argument template, substitutes the upstream URL,
// and, when hls is set, splices the hls_args tokens in after the input.
func BuildArgv(template, hlsArgs, url string, hls bool) ([]string, error) {
	argv := Tokenize(template)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv template")
	}
	argv = SubstituteURL(argv, url)

	if hls && hlsArgs != "" {
		extra := SubstituteURL(Tokenize(hlsArgs), url)
		var err error
		argv, err = InsertAfterInput(argv, extra)
		if err != nil {
			return nil, err
		}
	}

	return argv, nil
}
