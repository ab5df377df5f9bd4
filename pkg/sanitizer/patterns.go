package sanitizer

import "regexp"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Pattern is one immutable entry of a detection rule table.
type Pattern struct {
	Name        string
	Matcher     *regexp.Regexp
	Severity    Severity
	Description string
}

var injectionPatterns = []Pattern{
	// high
	{
		Name: "system_prompt_override",
		Matcher: regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override|skip)\s+(all\s+|any\s+|the\s+|your\s+)*` +
			`(previous|prior|above|earlier|preceding|system|original)\s+(instructions?|prompts?|rules?|directives?|guidelines?|context)`),
		Severity:    SeverityHigh,
		Description: "Attempt to override the system prompt",
	},
	{
		Name: "new_instructions",
		Matcher: regexp.MustCompile(`(?i)\b(new|real|actual|updated|true|revised)\s+(system\s+)?(instructions?|directives?|rules)\s*(:|are\b|follow\b)|` +
			`\byour\s+(real|actual|true|new)\s+(instructions?|purpose|task)\s+(is|are)\b`),
		Severity:    SeverityHigh,
		Description: "Claims to provide new or real instructions",
	},
	{
		Name: "role_impersonation",
		Matcher: regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(a|an|the|my|in)?\b|` +
			`\bact\s+as\s+(if\s+you\s+(are|were)\s+)?(a|an|the|my)\b|` +
			`\bpretend\s+(to\s+be|you\s+are|you're)\b|` +
			`\b(roleplay|role-play)\s+as\b|` +
			`\bfrom\s+now\s+on\s+you\s+(are|will\s+be)\b`),
		Severity:    SeverityHigh,
		Description: "Tries to make the assistant assume another role",
	},
	{
		Name: "jailbreak_attempt",
		Matcher: regexp.MustCompile(`(?i)(?-i:\bDAN\b)|\bdo\s+anything\s+now\b|` +
			`\b(developer|god|admin|debug|sudo|unrestricted|jailbreak)\s+mode\b|` +
			`\bjailbreak(ed|ing)?\b|` +
			`\bbypass\s+(your\s+|the\s+|all\s+)?(safety|security|content|filters?|restrictions?|guardrails?)\b`),
		Severity:    SeverityHigh,
		Description: "Known jailbreak technique",
	},

	// medium
	{
		Name:        "delimiter_injection",
		Matcher:     regexp.MustCompile("(?i)```+\\s*(system|instructions?|prompt|config(uration)?|admin)\\b"),
		Severity:    SeverityMedium,
		Description: "Code fence used to open a fake instruction block",
	},
	{
		Name: "xml_tag_injection",
		Matcher: regexp.MustCompile(`(?i)<\s*/?\s*(system|user|assistant|human|ai|instructions?|prompt|im_start|im_end)\s*>|` +
			`<\|\s*(system|user|assistant|im_start|im_end|endoftext)\s*\|>`),
		Severity:    SeverityMedium,
		Description: "Chat role markup injected into user content",
	},
	{
		Name: "prompt_leaking",
		Matcher: regexp.MustCompile(`(?i)\b(reveal|show|print|display|output|repeat|tell|give)\s+(me\s+)?` +
			`(your|the|system|all|initial|original|hidden)\s+(\w+\s+)?(prompts?|instructions?|rules|guidelines|configuration)\b|` +
			`\bwhat\s+(are|were|is)\s+(your|the)\s+(system\s+|original\s+|initial\s+)?(prompts?|instructions?|rules)\b`),
		Severity:    SeverityMedium,
		Description: "Asks the assistant to disclose its instructions",
	},
	{
		Name: "context_manipulation",
		Matcher: regexp.MustCompile(`(?i)\b(end|stop)\s+of\s+(the\s+)?(context|conversation|system\s+prompt|instructions?|input)\b|` +
			`\bfrom\s+now\s+on\b|` +
			`\b(begin|start)\s+(of\s+)?new\s+(context|conversation|session)\b|` +
			`(?m:^\s*(-{3,}|={3,}|#{3,})\s*(end|new|system|instructions?)\b)`),
		Severity:    SeverityMedium,
		Description: "Attempts to move the context boundary",
	},
	{
		Name: "output_manipulation",
		Matcher: regexp.MustCompile(`(?i)\b(respond|reply|answer|output)\s+(only\s+)?(with|in)\s+(only\s+)?` +
			`(json|xml|code|raw|the\s+following|exactly)\b|` +
			`\b(always|only)\s+(respond|reply|answer|say)\s+(with\s+)?["']|` +
			`\bdo\s+not\s+(include|add)\s+(any\s+)?(warnings?|disclaimers?|explanations?)\b`),
		Severity:    SeverityMedium,
		Description: "Attempts to hijack the response format",
	},

	// low
	{
		Name:        "base64_payload",
		Matcher:     regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`),
		Severity:    SeverityLow,
		Description: "Long base64-looking run",
	},
	{
		Name:        "excessive_special_chars",
		Matcher:     regexp.MustCompile(`[^\p{L}\p{N}\p{Z}\s_]{10,}`),
		Severity:    SeverityLow,
		Description: "Long run of special characters",
	},
	{
		Name:        "unicode_lookalike",
		Matcher:     regexp.MustCompile(`[\x{0370}-\x{03FF}\x{0400}-\x{04FF}\x{0500}-\x{052F}\x{2DE0}-\x{2DFF}\x{A640}-\x{A69F}\x{FF01}-\x{FF5E}]`),
		Severity:    SeverityLow,
		Description: "Characters from blocks commonly used as Latin lookalikes",
	},
}

// harmfulPatterns carry no severity: they never change the risk level but make
// strict mode block.
var harmfulPatterns = []Pattern{
	{
		Name: "data_exfiltration",
		Matcher: regexp.MustCompile(`(?i)\b(send|post|upload|transmit|forward|exfiltrate|leak|email)\s+(all\s+|the\s+|my\s+|your\s+|this\s+)*` +
			`(data|conversation|history|credentials?|passwords?|secrets?|tokens?|api\s+keys?|keys)\s+(to|into|via)\b|` +
			`\b(curl|wget)\b[^\n]*https?://`),
		Description: "Data exfiltration phrasing",
	},
	{
		Name: "code_execution",
		Matcher: regexp.MustCompile(`(?i)\b(execute|run|eval)\s+(this\s+|the\s+following\s+)?(shell|bash|system|terminal|python|powershell)?\s*(command|code|script)s?\b|` +
			`\b(os\.system|subprocess\.(call|run|popen)|child_process|exec\s*\(|eval\s*\(|rm\s+-rf)`),
		Description: "Code execution phrasing",
	},
	{
		Name: "sensitive_file_access",
		Matcher: regexp.MustCompile(`(?i)/etc/(passwd|shadow|hosts|sudoers)\b|~?/\.ssh/|\bid_rsa\b|` +
			`(^|[\s/'"])\.env\b|\b(read|open|cat|access|show)\s+(the\s+)?(config|credentials?|secrets?|private\s+keys?)\s+files?\b|` +
			`\.\./\.\./`),
		Description: "Sensitive path access phrasing",
	},
}

// InjectionPatterns returns a copy of the severity-tagged catalog.
func InjectionPatterns() []Pattern {
	out := make([]Pattern, len(injectionPatterns))
	copy(out, injectionPatterns)
	return out
}

// HarmfulPatterns returns a copy of the harmful-intent catalog.
func HarmfulPatterns() []Pattern {
	out := make([]Pattern, len(harmfulPatterns))
	copy(out, harmfulPatterns)
	return out
}
