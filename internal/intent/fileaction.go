package intent

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/docsage/backend/pkg/logger"
)

// ActionType is the fixed vocabulary of file-management commands the
// pipeline recognizes. Anything outside it is not a file action.
type ActionType string

const (
	ActionCreateFile   ActionType = "create_file"
	ActionCreateFolder ActionType = "create_folder"
	ActionRenameFile   ActionType = "rename_file"
	ActionRenameFolder ActionType = "rename_folder"
	ActionMoveFile     ActionType = "move_file"
	ActionDeleteFile   ActionType = "delete_file"
	ActionDeleteFolder ActionType = "delete_folder"
)

var actionVocabulary = map[string]ActionType{
	string(ActionCreateFile):   ActionCreateFile,
	string(ActionCreateFolder): ActionCreateFolder,
	string(ActionRenameFile):   ActionRenameFile,
	string(ActionRenameFolder): ActionRenameFolder,
	string(ActionMoveFile):     ActionMoveFile,
	string(ActionDeleteFile):   ActionDeleteFile,
	string(ActionDeleteFolder): ActionDeleteFolder,
}

// fallbackConfidenceFloor gates acceptance of the secondary classifier's
// proposal.
const fallbackConfidenceFloor = 0.7

// fileActionPatterns pair a verb with its object. Folder patterns come
// before file patterns so "create a folder" is not read as a file create.
// First hit wins.
var fileActionPatterns = []struct {
	re     *regexp.Regexp
	action ActionType
}{
	{regexp.MustCompile(`(?i)\b(create|make|add)\b[^.?!]{0,40}\b(folder|directory)\b`), ActionCreateFolder},
	{regexp.MustCompile(`(?i)\b(create|make|add)\b[^.?!]{0,40}\b(file|document|note)\b`), ActionCreateFile},
	{regexp.MustCompile(`(?i)\brename\b[^.?!]{0,40}\b(folder|directory)\b`), ActionRenameFolder},
	{regexp.MustCompile(`(?i)\brename\b[^.?!]{0,40}\b(file|document)\b`), ActionRenameFile},
	{regexp.MustCompile(`(?i)\brename\b[^.?!]{0,60}\.(pdf|docx?|xlsx?|pptx?|png|jpe?g|txt|csv|md)\b`), ActionRenameFile},
	{regexp.MustCompile(`(?i)\bmove\b[^.?!]{0,40}\b(file|document)\b`), ActionMoveFile},
	{regexp.MustCompile(`(?i)\bmove\b[^.?!]{0,60}\b(into|to)\b[^.?!]{0,40}\b(folder|directory)\b`), ActionMoveFile},
	{regexp.MustCompile(`(?i)\bmove\b[^.?!]{0,60}\.(pdf|docx?|xlsx?|pptx?|png|jpe?g|txt|csv|md)\b`), ActionMoveFile},
	{regexp.MustCompile(`(?i)\b(delete|remove|trash)\b[^.?!]{0,40}\b(folder|directory)\b`), ActionDeleteFolder},
	{regexp.MustCompile(`(?i)\b(delete|remove|trash)\b[^.?!]{0,40}\b(file|document)\b`), ActionDeleteFile},
	{regexp.MustCompile(`(?i)\b(delete|remove|trash)\b[^.?!]{0,60}\.(pdf|docx?|xlsx?|pptx?|png|jpe?g|txt|csv|md)\b`), ActionDeleteFile},
}

// DetectFileAction recognizes create/rename/move/delete requests over
// files and folders. The deterministic regex pass runs first; if nothing
// hits, the external classifier may still claim the query, but only with
// a proposal inside the fixed vocabulary and confidence above the floor.
// A classifier failure means "not a file action" and the router continues.
func DetectFileAction(ctx context.Context, text string, fallback FallbackClassifier) (ActionType, bool) {
	for _, p := range fileActionPatterns {
		if p.re.MatchString(text) {
			return p.action, true
		}
	}

	if fallback == nil {
		return "", false
	}

	guess, err := fallback.DetectIntent(ctx, text)
	if err != nil {
		logger.Warn("Fallback intent classification failed", zap.Error(err))
		return "", false
	}

	action, known := actionVocabulary[normalizeIntent(guess.Intent)]
	if !known || guess.Confidence <= fallbackConfidenceFloor {
		return "", false
	}

	logger.Debug("File action accepted from fallback classifier",
		zap.String("intent", guess.Intent),
		zap.Float64("confidence", guess.Confidence),
	)
	return action, true
}

func normalizeIntent(intent string) string {
	s := strings.ToLower(strings.TrimSpace(intent))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
