package sanitizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	domain "github.com/NeuralTrust/TrustBoundary/pkg/domain/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMaxLength             = 32000
	DefaultSystemPromptMaxLength = 4000

	zeroWidthSpace = "\u200b"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is as severe as other or more.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

type Options struct {
	MaxLength        int  `mapstructure:"max_length" json:"max_length"`
	StripHTML        bool `mapstructure:"strip_html" json:"strip_html"`
	NormalizeUnicode bool `mapstructure:"normalize_unicode" json:"normalize_unicode"`
	DetectInjection  bool `mapstructure:"detect_injection" json:"detect_injection"`
	StrictMode       bool `mapstructure:"strict_mode" json:"strict_mode"`
}

func DefaultOptions() Options {
	return Options{
		MaxLength:        DefaultMaxLength,
		StripHTML:        true,
		NormalizeUnicode: true,
		DetectInjection:  true,
		StrictMode:       false,
	}
}

type Option func(*Options)

func WithMaxLength(n int) Option {
	return func(o *Options) { o.MaxLength = n }
}

func WithStripHTML(enabled bool) Option {
	return func(o *Options) { o.StripHTML = enabled }
}

func WithNormalizeUnicode(enabled bool) Option {
	return func(o *Options) { o.NormalizeUnicode = enabled }
}

func WithDetectInjection(enabled bool) Option {
	return func(o *Options) { o.DetectInjection = enabled }
}

func WithStrictMode(enabled bool) Option {
	return func(o *Options) { o.StrictMode = enabled }
}

// WithOptions replaces every field at once.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

type Result struct {
	Sanitized          string    `json:"sanitized"`
	WasModified        bool      `json:"was_modified"`
	SuspiciousPatterns []string  `json:"suspicious_patterns"`
	RiskLevel          RiskLevel `json:"risk_level"`
	ShouldBlock        bool      `json:"should_block"`
}

// Err returns an InputBlockedError when the result must be rejected.
func (r Result) Err() error {
	if !r.ShouldBlock {
		return nil
	}
	return domain.NewInputBlockedError(string(r.RiskLevel))
}

// Func is a sanitizer with bound defaults.
type Func func(text string, overrides ...Option) Result

// New binds defaults on top of DefaultOptions and returns a reusable sanitizer.
func New(defaults ...Option) Func {
	base := DefaultOptions()
	for _, opt := range defaults {
		opt(&base)
	}
	return func(text string, overrides ...Option) Result {
		o := base
		for _, opt := range overrides {
			opt(&o)
		}
		return SanitizeWithOptions(text, o)
	}
}

func Sanitize(text string, opts ...Option) Result {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return SanitizeWithOptions(text, o)
}

// SanitizeSystemPrompt cleans trusted system prompts. Detection is always off.
func SanitizeSystemPrompt(text string, opts ...Option) string {
	o := DefaultOptions()
	o.MaxLength = DefaultSystemPromptMaxLength
	for _, opt := range opts {
		opt(&o)
	}
	o.DetectInjection = false
	o.StrictMode = false
	return SanitizeWithOptions(text, o).Sanitized
}

func SanitizeWithOptions(text string, o Options) Result {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}

	sanitized := truncate(text, o.MaxLength)
	if o.NormalizeUnicode {
		sanitized = norm.NFKC.String(sanitized)
	}
	if o.StripHTML {
		sanitized = stripHTML(sanitized)
	}
	sanitized = escapeCodeFences(sanitized)
	sanitized = truncate(sanitized, o.MaxLength)
	if o.StripHTML {
		sanitized = strings.TrimSpace(sanitized)
	}

	result := Result{
		Sanitized:          sanitized,
		WasModified:        sanitized != text,
		SuspiciousPatterns: []string{},
		RiskLevel:          RiskLow,
	}
	if !o.DetectInjection {
		return result
	}

	found := make(map[string]Severity)
	harmful := make(map[string]struct{})
	for _, view := range []string{text, sanitized} {
		for _, p := range injectionPatterns {
			if _, ok := found[p.Name]; !ok && p.Matcher.MatchString(view) {
				found[p.Name] = p.Severity
			}
		}
		for _, p := range harmfulPatterns {
			if _, ok := harmful[p.Name]; !ok && p.Matcher.MatchString(view) {
				harmful[p.Name] = struct{}{}
			}
		}
	}

	severities := make([]Severity, 0, len(found))
	for name, sev := range found {
		severities = append(severities, sev)
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, name)
	}
	for name := range harmful {
		result.SuspiciousPatterns = append(result.SuspiciousPatterns, name)
	}
	sort.Strings(result.SuspiciousPatterns)

	result.RiskLevel = AggregateRisk(severities)
	result.ShouldBlock = o.StrictMode && (result.RiskLevel == RiskHigh || len(harmful) > 0)
	return result
}

// AggregateRisk folds matched severities into a risk level. Two or more medium
// matches compound into high.
func AggregateRisk(severities []Severity) RiskLevel {
	mediums := 0
	for _, s := range severities {
		switch s {
		case SeverityHigh:
			return RiskHigh
		case SeverityMedium:
			mediums++
		}
	}
	switch {
	case mediums >= 2:
		return RiskHigh
	case mediums == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	codeFenceRe   = regexp.MustCompile("`{3,}")
)

func stripHTML(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, " ")
	s = styleBlockRe.ReplaceAllString(s, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func escapeCodeFences(s string) string {
	return codeFenceRe.ReplaceAllStringFunc(s, func(run string) string {
		return strings.Join(strings.Split(run, ""), zeroWidthSpace)
	})
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}
	return s
}
