package whisperjar

import (
	"github.com/himanishpuri/WhisperJar/pkg/whisperjar/storage"
)

// NewSQLiteStorage opens the SQLite catalog at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}
