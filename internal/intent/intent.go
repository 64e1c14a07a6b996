package intent

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/docsage/backend/internal/match"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

// Kind selects exactly one handling strategy for a query.
type Kind int

const (
	KindRegular Kind = iota
	KindFileAction
	KindComparison
	KindCounting
	KindTypes
	KindListing
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindFileAction:
		return "file_action"
	case KindComparison:
		return "comparison"
	case KindCounting:
		return "counting"
	case KindTypes:
		return "types"
	case KindListing:
		return "listing"
	case KindMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Classification is the tagged result of routing one query. It is computed
// fresh per call and never persisted.
type Classification struct {
	Kind Kind

	// Action is set for KindFileAction.
	Action ActionType
	// Documents holds the compared documents for KindComparison.
	Documents []models.DocumentRecord
	// Aspect optionally narrows a comparison ("compare X and Y on pricing").
	Aspect string
	// FileExt is the optional extension filter for KindCounting ("" = all).
	FileExt string
}

// Guess is the secondary classifier's proposal for a query it was asked
// to label.
type Guess struct {
	Intent     string
	Confidence float64
}

// FallbackClassifier is the external intent-classification capability
// consulted when the file-action regexes do not hit.
type FallbackClassifier interface {
	DetectIntent(ctx context.Context, text string) (Guess, error)
}

var comparisonKeywords = []string{
	"compare", "comparison", "difference", "differences",
	"versus", " vs ", " vs.", "contrast", "similarities", "similar to",
}

var documentKeywords = []string{
	"document", "file", "pdf", "doc", "report", "upload", "presentation", "spreadsheet",
}

var listingKeywords = []string{"which", "what", "show", "list"}

var typeKeywords = []string{"what type", "what kind", "file type", "file types"}

var possessivePhrases = []string{"i have", "do i", "i've", "i uploaded", "have i"}

var possessiveWords = []string{"my", "mine", "uploaded"}

// extensionKeywords maps spoken file-type words to the stored extension
// used as a counting filter.
var extensionKeywords = []struct {
	keyword string
	ext     string
}{
	{"pdf", ".pdf"},
	{"excel", ".xlsx"},
	{"xlsx", ".xlsx"},
	{"spreadsheet", ".xlsx"},
	{"word", ".docx"},
	{"docx", ".docx"},
	{"powerpoint", ".pptx"},
	{"pptx", ".pptx"},
	{"presentation", ".pptx"},
	{"image", ".png"},
	{"png", ".png"},
	{"jpg", ".jpg"},
	{"jpeg", ".jpg"},
}

var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(hi|hiya|hello|hey|yo|good\s+(morning|afternoon|evening))\b`),
	regexp.MustCompile(`(?i)what\s+can\s+you\s+do`),
	regexp.MustCompile(`(?i)who\s+are\s+you`),
	regexp.MustCompile(`(?i)how\s+do\s+(i|you)\s+(use|work|get\s+started)`),
	regexp.MustCompile(`(?i)tell\s+me\s+about\s+yourself`),
	regexp.MustCompile(`(?i)^\s*(help|thanks|thank\s+you)\s*[!.?]*\s*$`),
}

var aspectPattern = regexp.MustCompile(`(?i)\b(?:in terms of|regarding|with respect to|focusing on)\s+(.+?)\s*[?.!]*\s*$`)

// Router is the ordered intent classifier. The evaluation order below is
// the contract: file action, comparison, counting, types, listing, meta,
// then regular retrieval. The first positive match wins and no branch is
// re-evaluated.
type Router struct {
	fallback FallbackClassifier
}

func NewRouter(fallback FallbackClassifier) *Router {
	return &Router{fallback: fallback}
}

// Classify assigns the query to exactly one strategy. docs is the caller's
// owner-scoped candidate corpus used for comparison detection.
func (r *Router) Classify(ctx context.Context, text string, docs []models.DocumentRecord) Classification {
	lower := strings.ToLower(text)

	// 1. File action: regex pass, then confidence-gated fallback.
	if action, ok := DetectFileAction(ctx, text, r.fallback); ok {
		return Classification{Kind: KindFileAction, Action: action}
	}

	// 2. Comparison: keyword plus at least two fuzzy-matched documents.
	if containsAny(lower, comparisonKeywords) {
		if mentioned := match.MentionedDocuments(text, docs); len(mentioned) >= 2 {
			return Classification{
				Kind:      KindComparison,
				Documents: mentioned,
				Aspect:    extractAspect(text),
			}
		}
	}

	hasDocWord := hasDocumentKeyword(lower)
	hasPossessive := containsAny(lower, possessivePhrases) || hasAnyWord(lower, possessiveWords)

	// 3. Counting.
	if (strings.Contains(lower, "how many") || hasAnyWord(lower, []string{"count"})) && hasDocWord {
		return Classification{Kind: KindCounting, FileExt: extensionFilter(lower)}
	}

	// 4. Type breakdown.
	if containsAny(lower, typeKeywords) && hasDocWord && hasPossessive {
		return Classification{Kind: KindTypes}
	}

	// 5. Listing.
	if hasAnyWord(lower, listingKeywords) && hasDocWord && hasPossessive {
		return Classification{Kind: KindListing}
	}

	// 6. Meta.
	for _, p := range metaPatterns {
		if p.MatchString(text) {
			return Classification{Kind: KindMeta}
		}
	}

	// 7. Default.
	logger.Debug("Query routed to regular retrieval", zap.String("query", text))
	return Classification{Kind: KindRegular}
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// hasAnyWord does whole-word matching with plural tolerance, so "file"
// matches "files" but not "profile".
func hasAnyWord(lower string, words []string) bool {
	for _, token := range strings.Fields(lower) {
		token = strings.Trim(token, ".,!?;:'\"()")
		for _, w := range words {
			if token == w || token == w+"s" {
				return true
			}
		}
	}
	return false
}

func hasDocumentKeyword(lower string) bool {
	return hasAnyWord(lower, documentKeywords)
}

func extensionFilter(lower string) string {
	for _, ek := range extensionKeywords {
		if hasAnyWord(lower, []string{ek.keyword}) {
			return ek.ext
		}
	}
	return ""
}

func extractAspect(text string) string {
	m := aspectPattern.FindStringSubmatch(text)
	if len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
