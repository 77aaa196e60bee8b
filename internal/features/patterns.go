package features

import (
	"regexp"
)

// Tag labels what a pattern means when it matches.
type Tag string

const (
	TagFigureNumber    Tag = "figure_number"
	TagFigureReference Tag = "figure_reference"
	TagSkip            Tag = "skip"
	TagForceImage      Tag = "force_image"
	TagStep            Tag = "step"
	TagNumberedList    Tag = "numbered_list"
)

// Pattern pairs a compiled expression with its semantic tag. Pattern lists
// are data, not code: extend behavior by appending entries, not by editing
// match logic.
type Pattern struct {
	Name string
	Tag  Tag
	re   *regexp.Regexp
}

// MatchString reports whether the pattern matches anywhere in s.
func (p Pattern) MatchString(s string) bool { return p.re.MatchString(s) }

// Expr returns the source expression.
func (p Pattern) Expr() string { return p.re.String() }

// PatternSet is an ordered collection of tagged patterns.
type PatternSet struct {
	entries []Pattern
}

// NewPatternSet compiles the given expressions under one tag, in order.
// Invalid expressions are rejected so a bad config fails loudly at startup.
func NewPatternSet(tag Tag, exprs ...string) (*PatternSet, error) {
	s := &PatternSet{}
	for _, e := range exprs {
		if err := s.Append(tag, e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustPatternSet is NewPatternSet for the built-in defaults.
func MustPatternSet(tag Tag, exprs ...string) *PatternSet {
	s, err := NewPatternSet(tag, exprs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Append compiles expr and adds it to the end of the set.
func (s *PatternSet) Append(tag Tag, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, Pattern{Name: expr, Tag: tag, re: re})
	return nil
}

// Len returns the number of patterns in the set.
func (s *PatternSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// FirstMatch returns the first pattern matching text, in insertion order.
func (s *PatternSet) FirstMatch(text string) (Pattern, bool) {
	if s == nil {
		return Pattern{}, false
	}
	for _, p := range s.entries {
		if p.MatchString(text) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Matches reports whether any pattern in the set matches text.
func (s *PatternSet) Matches(text string) bool {
	_, ok := s.FirstMatch(text)
	return ok
}

// Each iterates the patterns in order.
func (s *PatternSet) Each(fn func(Pattern) bool) {
	if s == nil {
		return
	}
	for _, p := range s.entries {
		if !fn(p) {
			return
		}
	}
}

// Figure numbering conventions of Japanese technical manuals plus the usual
// English forms.
func DefaultFigureNumberPatterns() *PatternSet {
	return MustPatternSet(TagFigureNumber,
		`図\s*\d+[-\.]\d+`,
		`図\s*\d+`,
		`図表\s*\d+[-\.]\d+`,
		`表\s*\d+[-\.]\d+`,
		`Fig\.\s*\d+[-\.]\d+`,
		`Figure\s*\d+[-\.]\d+`,
	)
}

// Back-reference phrasings: a sentence that talks about a figure without the
// figure being on the page.
func DefaultFigureReferencePatterns() *PatternSet {
	return MustPatternSet(TagFigureReference,
		`図\s*\d+[-\.]\d+\s*の通り`,
		`図\s*\d+[-\.]\d+\s*を参照`,
		`図\s*\d+[-\.]\d+\s*に示す`,
		`図\s*\d+[-\.]\d+\s*参照`,
		`図\s*\d+\s*の通り`,
		`図\s*\d+\s*を参照`,
		`参考.*図\s*\d+`,
		`前述の図\s*\d+`,
		`次の図\s*\d+`,
		`上記の図\s*\d+`,
		`下記の図\s*\d+`,
		`図\s*\d+[-\.]\d+\s*より`,
		`図\s*\d+[-\.]\d+\s*から`,
		`図\s*\d+[-\.]\d+\s*で示`,
		`については図\s*\d+`,
		`see\s+[Ff]igure\s*\d+`,
		`as\s+shown\s+in\s+[Ff]igure\s*\d+`,
	)
}

// Front-matter markers checked against the head of a page's text.
func DefaultSkipPatterns() *PatternSet {
	return MustPatternSet(TagSkip,
		`目\s*次`,
		`索\s*引`,
		`はじめに`,
		`まえがき`,
		`奥付`,
		`(?i)table of contents`,
		`(?i)^index$`,
		`(?i)preface`,
		`(?i)colophon`,
	)
}

// Keywords whose presence always routes a page to image processing.
func DefaultForceImageKeywords() *PatternSet {
	return MustPatternSet(TagForceImage,
		`フロー図`,
		`ブロック図`,
		`配線図`,
		`回路図`,
	)
}

// Procedure/step markers used as flow-structure evidence.
func DefaultStepPattern() *PatternSet {
	return MustPatternSet(TagStep,
		`(STEP|ステップ|手順|Phase|フェーズ|工程)\s*[0-9０-９①-⑩]`,
	)
}

// Numbered-list markers.
func DefaultNumberedListPattern() *PatternSet {
	return MustPatternSet(TagNumberedList,
		`[①-⑩]`,
		`[1-9]\.\s`,
	)
}

// captionContexts builds the three layout-context expressions that promote a
// figure-number match to an actual figure caption: line-start position, an
// isolated line, or indentation/centering before the token.
func captionContexts(expr string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*` + expr + `[\s　:]`),
		regexp.MustCompile(`(?m)^\s*` + expr + `\s*$`),
		regexp.MustCompile(`(?m)^[ 　]{3,}` + expr + `(\s|$)`),
	}
}
