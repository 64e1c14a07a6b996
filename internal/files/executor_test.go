package files

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/backend/internal/storage/models"
)

type fakeStore struct {
	docs    []models.DocumentRecord
	folders []models.Folder
	findErr error

	inserted       []*models.DocumentRecord
	renamed        map[string]string
	softDeleted    []string
	moved          map[string]string
	createdFolders []string
	renamedFolders map[string]string
	deletedFolders []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		renamed:        map[string]string{},
		moved:          map[string]string{},
		renamedFolders: map[string]string{},
	}
}

func (s *fakeStore) Find(context.Context, models.DocumentFilter) ([]models.DocumentRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.docs, nil
}

func (s *fakeStore) InsertDocument(_ context.Context, doc *models.DocumentRecord) error {
	s.inserted = append(s.inserted, doc)
	return nil
}

func (s *fakeStore) RenameDocument(_ context.Context, _, docID, newName string) error {
	s.renamed[docID] = newName
	return nil
}

func (s *fakeStore) SoftDeleteDocument(_ context.Context, _, docID string) error {
	s.softDeleted = append(s.softDeleted, docID)
	return nil
}

func (s *fakeStore) MoveDocument(_ context.Context, _, docID, folderID string) error {
	s.moved[docID] = folderID
	return nil
}

func (s *fakeStore) CreateFolder(_ context.Context, _, name string) (string, error) {
	s.createdFolders = append(s.createdFolders, name)
	return "folder-" + name, nil
}

func (s *fakeStore) RenameFolder(_ context.Context, _, folderID, newName string) error {
	s.renamedFolders[folderID] = newName
	return nil
}

func (s *fakeStore) DeleteFolder(_ context.Context, _, folderID string) error {
	s.deletedFolders = append(s.deletedFolders, folderID)
	return nil
}

func (s *fakeStore) FindFolder(_ context.Context, _, name string) (*models.Folder, error) {
	for i := range s.folders {
		if strings.EqualFold(s.folders[i].Name, name) {
			return &s.folders[i], nil
		}
	}
	return nil, errors.New("not found")
}

func activeDoc(id, filename string) models.DocumentRecord {
	return models.DocumentRecord{
		ID:        id,
		Filename:  filename,
		OwnerID:   "u1",
		Status:    models.StatusActive,
		CreatedAt: time.Now(),
	}
}

func TestExecuteCreateFolder(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Create a folder called Invoices", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "Invoices")
	require.Len(t, store.createdFolders, 1)
	assert.Equal(t, "Invoices", store.createdFolders[0])
}

func TestExecuteCreateFileQuotedName(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), `Make a file named "notes.txt"`, "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "notes.txt", store.inserted[0].Filename)
	assert.Equal(t, "u1", store.inserted[0].OwnerID)
	assert.Equal(t, models.StatusActive, store.inserted[0].Status)
}

func TestExecuteRenameFile(t *testing.T) {
	store := newFakeStore()
	store.docs = []models.DocumentRecord{activeDoc("d1", "report.pdf")}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Rename the file report.pdf to final-report.pdf", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "final-report.pdf", store.renamed["d1"])
}

func TestExecuteRenameFileNotFound(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Rename the file ghost.pdf to real.pdf", "u1")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Empty(t, store.renamed)
}

func TestExecuteMoveFile(t *testing.T) {
	store := newFakeStore()
	store.docs = []models.DocumentRecord{activeDoc("d1", "budget.xlsx")}
	store.folders = []models.Folder{{ID: "f1", Name: "Projects", OwnerID: "u1"}}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Move the file budget.xlsx into Projects", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "f1", store.moved["d1"])
}

func TestExecuteMoveFileBareFilename(t *testing.T) {
	store := newFakeStore()
	store.docs = []models.DocumentRecord{activeDoc("d1", "budget.xlsx")}
	store.folders = []models.Folder{{ID: "f1", Name: "Projects", OwnerID: "u1"}}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Move budget.xlsx into Projects", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "f1", store.moved["d1"])
}

func TestExecuteMoveFileUnknownFolder(t *testing.T) {
	store := newFakeStore()
	store.docs = []models.DocumentRecord{activeDoc("d1", "budget.xlsx")}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Move the file budget.xlsx into Projects", "u1")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Empty(t, store.moved)
}

func TestExecuteDeleteFile(t *testing.T) {
	store := newFakeStore()
	store.docs = []models.DocumentRecord{activeDoc("d1", "old_notes.pdf")}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Delete the file old_notes.pdf", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"d1"}, store.softDeleted)
}

func TestExecuteDeleteFolderKeepsDocuments(t *testing.T) {
	store := newFakeStore()
	store.folders = []models.Folder{{ID: "f1", Name: "Archive", OwnerID: "u1"}}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Delete the folder called Archive", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "documents were kept")
	assert.Equal(t, []string{"f1"}, store.deletedFolders)
}

func TestExecuteRenameFolder(t *testing.T) {
	store := newFakeStore()
	store.folders = []models.Folder{{ID: "f1", Name: "Archive", OwnerID: "u1"}}
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Rename the folder Archive to Old", "u1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Old", store.renamedFolders["f1"])
}

func TestExecuteUnrecognizedCommand(t *testing.T) {
	store := newFakeStore()
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "What is the weather today?", "u1")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, store.inserted)
	assert.Empty(t, store.softDeleted)
}

func TestExecuteStoreFailureDegrades(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("db down")
	exec := NewExecutor(store)

	res, err := exec.Execute(context.Background(), "Delete the file old_notes.pdf", "u1")
	require.Error(t, err)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}
