package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/battlecity/game/service"
)

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir string
	factory     service.EngineFactory
}

// NewFilePersistence creates a new file-based session persistence layer.
// Loaded sessions get fresh engines from factory.
func NewFilePersistence(sessionsDir string, factory service.EngineFactory) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir: sessionsDir,
		factory:     factory,
	}, nil
}

// Save persists a session to a JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if !validID(session.ID) {
		return ErrInvalidSessionID
	}

	info := session.Info()
	levelIndex, lives, runID := session.Snapshot()
	data := PersistedSessionData{
		ID:             session.ID,
		LevelName:      session.LevelName,
		LevelIndex:     levelIndex,
		Lives:          lives,
		RunID:          runID,
		CreatedAt:      info.CreatedAt,
		LastAccessedAt: info.LastAccessedAt,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := os.WriteFile(fp.getFilePath(session.ID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load retrieves a session from a JSON file. The session resumes at the
// start of the level it was playing, with the lives it had.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	if !validID(id) {
		return nil, ErrInvalidSessionID
	}

	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	eng, err := fp.factory(data.LevelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for level '%s': %w", data.LevelName, err)
	}
	if data.LevelIndex != eng.LevelIndex() {
		if err := eng.Goto(data.LevelIndex); err != nil {
			return nil, fmt.Errorf("failed to resume level %d: %w", data.LevelIndex, err)
		}
	}
	if data.Lives > 0 {
		eng.World().Lives = data.Lives
	}

	session := service.NewSession(data.ID, data.LevelName, eng)
	session.CreatedAt = data.CreatedAt
	session.LastAccessedAt = data.LastAccessedAt

	return session, nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\ `) && id != "." && id != ".."
}
