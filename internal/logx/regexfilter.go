package logx

import "regexp"

// NewRegexMatchFilter builds the Filter behind the logFilterRegEx
// configuration key: TlsTestTool.cpp's main() compiles the configured
// expression once at startup and registers a filter that re-emits any
// message fully matching it as a separate "Matched message: ..." line at
// LevelHigh under the "Tool" origin, so an operator can grep the output
// for every line a pattern caught regardless of its original origin. The
// pattern is expected to already have been validated (config.Load
// rejects a non-compiling logFilterRegEx at parse time); NewRegexMatchFilter
// returns the compile error again here only because AddFilter's caller
// may build the pattern from a value the parser never saw.
func NewRegexMatchFilter(pattern string) (Filter, error) {
	// std::regex_match requires the whole subject to match, not merely a
	// substring; Go's regexp.MatchString is a search, so the pattern is
	// anchored to reproduce the original's full-match semantics.
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	return func(level Level, origin, message string, logger *Logger) {
		if re.MatchString(message) {
			logger.LogAt(LevelHigh, "Tool", "Matched message: "+message)
		}
	}, nil
}
