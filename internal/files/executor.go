package files

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docsage/backend/internal/intent"
	"github.com/docsage/backend/internal/match"
	"github.com/docsage/backend/internal/metrics"
	"github.com/docsage/backend/internal/storage/models"
	"github.com/docsage/backend/pkg/logger"
)

// ActionResult is what the executor reports back; Message is forwarded to
// the user verbatim.
type ActionResult struct {
	Success bool
	Message string
	Err     string
}

// Store is the slice of the document store the executor needs.
type Store interface {
	Find(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, error)
	InsertDocument(ctx context.Context, doc *models.DocumentRecord) error
	RenameDocument(ctx context.Context, ownerID, docID, newName string) error
	SoftDeleteDocument(ctx context.Context, ownerID, docID string) error
	MoveDocument(ctx context.Context, ownerID, docID, folderID string) error
	CreateFolder(ctx context.Context, ownerID, name string) (string, error)
	RenameFolder(ctx context.Context, ownerID, folderID, newName string) error
	DeleteFolder(ctx context.Context, ownerID, folderID string) error
	FindFolder(ctx context.Context, ownerID, name string) (*models.Folder, error)
}

type Executor struct {
	store Store
}

func NewExecutor(store Store) *Executor {
	return &Executor{store: store}
}

var (
	quotedNamePattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	calledNamePattern = regexp.MustCompile(`(?i)\b(?:called|named)\s+([\w .\-]+?)\s*[?.!]*\s*$`)
	renamePattern     = regexp.MustCompile(`(?i)\brename\b\s+(?:the\s+)?(?:file\s+|document\s+|folder\s+|directory\s+)?(.+?)\s+to\s+(.+?)\s*[?.!]*\s*$`)
	movePattern       = regexp.MustCompile(`(?i)\bmove\b\s+(?:the\s+)?(.+?)\s+(?:into|to)\s+(?:the\s+)?(?:folder\s+)?(.+?)\s*[?.!]*\s*$`)
)

// Execute carries out a natural-language file-management command for the
// given user. It re-derives the action from the deterministic patterns
// only; a command that reached it through the fallback classifier but has
// no recognizable shape fails gracefully.
func (e *Executor) Execute(ctx context.Context, command, userID string) (ActionResult, error) {
	action, ok := intent.DetectFileAction(ctx, command, nil)
	if !ok {
		return failure("I couldn't work out which file action you meant. Try something like \"create a folder called Invoices\"."), nil
	}

	logger.Info("Executing file action",
		zap.String("action", string(action)),
		zap.String("user_id", userID),
	)

	var result ActionResult
	var err error

	switch action {
	case intent.ActionCreateFolder:
		result, err = e.createFolder(ctx, command, userID)
	case intent.ActionCreateFile:
		result, err = e.createFile(ctx, command, userID)
	case intent.ActionRenameFile:
		result, err = e.renameFile(ctx, command, userID)
	case intent.ActionRenameFolder:
		result, err = e.renameFolder(ctx, command, userID)
	case intent.ActionMoveFile:
		result, err = e.moveFile(ctx, command, userID)
	case intent.ActionDeleteFile:
		result, err = e.deleteFile(ctx, command, userID)
	case intent.ActionDeleteFolder:
		result, err = e.deleteFolder(ctx, command, userID)
	default:
		return failure("That file action isn't supported yet."), nil
	}

	status := "success"
	if !result.Success {
		status = "failure"
	}
	metrics.FileActionsExecuted.WithLabelValues(string(action), status).Inc()

	return result, err
}

func (e *Executor) createFolder(ctx context.Context, command, userID string) (ActionResult, error) {
	name := extractName(command)
	if name == "" {
		return failure("What should the folder be called? Try \"create a folder called Invoices\"."), nil
	}

	if _, err := e.store.CreateFolder(ctx, userID, name); err != nil {
		return failure("I couldn't create that folder."), err
	}

	return success(fmt.Sprintf("Created the folder %q.", name)), nil
}

func (e *Executor) createFile(ctx context.Context, command, userID string) (ActionResult, error) {
	name := extractName(command)
	if name == "" {
		return failure("What should the file be called? Try \"create a file called notes.txt\"."), nil
	}

	doc := &models.DocumentRecord{
		ID:        uuid.New().String(),
		Filename:  name,
		MimeType:  "text/plain",
		OwnerID:   userID,
		Status:    models.StatusActive,
		CreatedAt: time.Now(),
	}
	if err := e.store.InsertDocument(ctx, doc); err != nil {
		return failure("I couldn't create that file."), err
	}

	return success(fmt.Sprintf("Created the file %q.", name)), nil
}

func (e *Executor) renameFile(ctx context.Context, command, userID string) (ActionResult, error) {
	from, to, ok := extractRename(command)
	if !ok {
		return failure("Tell me both names, e.g. \"rename report.pdf to final-report.pdf\"."), nil
	}

	doc, err := e.resolveDocument(ctx, userID, from)
	if err != nil {
		return failure("I couldn't look up that document."), err
	}
	if doc == nil {
		return failure(fmt.Sprintf("I couldn't find a document matching %q.", from)), nil
	}

	if err := e.store.RenameDocument(ctx, userID, doc.ID, to); err != nil {
		return failure("The rename didn't go through."), err
	}

	return success(fmt.Sprintf("Renamed %q to %q.", doc.Filename, to)), nil
}

func (e *Executor) renameFolder(ctx context.Context, command, userID string) (ActionResult, error) {
	from, to, ok := extractRename(command)
	if !ok {
		return failure("Tell me both names, e.g. \"rename the folder Archive to Old\"."), nil
	}

	folder, err := e.store.FindFolder(ctx, userID, from)
	if err != nil || folder == nil {
		return failure(fmt.Sprintf("I couldn't find a folder named %q.", from)), nil
	}

	if err := e.store.RenameFolder(ctx, userID, folder.ID, to); err != nil {
		return failure("The rename didn't go through."), err
	}

	return success(fmt.Sprintf("Renamed the folder %q to %q.", from, to)), nil
}

func (e *Executor) moveFile(ctx context.Context, command, userID string) (ActionResult, error) {
	m := movePattern.FindStringSubmatch(command)
	if m == nil {
		return failure("Tell me what to move and where, e.g. \"move budget.xlsx into Projects\"."), nil
	}
	what, where := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])

	doc, err := e.resolveDocument(ctx, userID, what)
	if err != nil {
		return failure("I couldn't look up that document."), err
	}
	if doc == nil {
		return failure(fmt.Sprintf("I couldn't find a document matching %q.", what)), nil
	}

	folder, err := e.store.FindFolder(ctx, userID, where)
	if err != nil || folder == nil {
		return failure(fmt.Sprintf("I couldn't find a folder named %q.", where)), nil
	}

	if err := e.store.MoveDocument(ctx, userID, doc.ID, folder.ID); err != nil {
		return failure("The move didn't go through."), err
	}

	return success(fmt.Sprintf("Moved %q into %q.", doc.Filename, folder.Name)), nil
}

func (e *Executor) deleteFile(ctx context.Context, command, userID string) (ActionResult, error) {
	doc, err := e.resolveDocument(ctx, userID, command)
	if err != nil {
		return failure("I couldn't look up that document."), err
	}
	if doc == nil {
		return failure("I couldn't work out which document to delete."), nil
	}

	if err := e.store.SoftDeleteDocument(ctx, userID, doc.ID); err != nil {
		return failure("The delete didn't go through."), err
	}

	return success(fmt.Sprintf("Deleted %q.", doc.Filename)), nil
}

func (e *Executor) deleteFolder(ctx context.Context, command, userID string) (ActionResult, error) {
	name := extractName(command)
	if name == "" {
		return failure("Which folder should I delete?"), nil
	}

	folder, err := e.store.FindFolder(ctx, userID, name)
	if err != nil || folder == nil {
		return failure(fmt.Sprintf("I couldn't find a folder named %q.", name)), nil
	}

	if err := e.store.DeleteFolder(ctx, userID, folder.ID); err != nil {
		return failure("The delete didn't go through."), err
	}

	return success(fmt.Sprintf("Deleted the folder %q. Its documents were kept.", folder.Name)), nil
}

// resolveDocument fuzzy-matches free text against the user's active
// documents and picks the first hit.
func (e *Executor) resolveDocument(ctx context.Context, userID, text string) (*models.DocumentRecord, error) {
	docs, err := e.store.Find(ctx, models.DocumentFilter{OwnerID: userID})
	if err != nil {
		return nil, err
	}

	matched := match.MentionedDocuments(text, docs)
	if len(matched) == 0 {
		return nil, nil
	}
	return &matched[0], nil
}

// extractName pulls a quoted or "called/named X" name out of a command.
func extractName(command string) string {
	if m := quotedNamePattern.FindStringSubmatch(command); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if m := calledNamePattern.FindStringSubmatch(command); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractRename(command string) (from, to string, ok bool) {
	m := renamePattern.FindStringSubmatch(command)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

func success(message string) ActionResult {
	return ActionResult{Success: true, Message: message}
}

func failure(message string) ActionResult {
	return ActionResult{Success: false, Message: message, Err: message}
}
