package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/WhisperJar/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "whispers.db"
const errDBClientNil = "db client is nil"

var (
	// ErrStorageUnavailable is returned when the catalog cannot be opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned when a clip id is not in the catalog.
	ErrNotFound = errors.New("clip not found")
	// ErrNameTooLong is returned when a name exceeds models.MaxNameLength.
	ErrNameTooLong = fmt.Errorf("name longer than %d characters", models.MaxNameLength)
)

type DBClient struct {
	DB *gorm.DB
	db *sql.DB

	// writeMu serializes inserts and updates so an update never races the
	// insert of the same clip.
	writeMu sync.Mutex
}

// Clip is the catalog row.
type Clip struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:32;not null;default:''"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	FileName  string
	Length    int `gorm:"not null;default:0;index:idx_clip_length"`
}

func (Clip) TableName() string { return "clips" }

// Filter narrows a Query. It is a gorm scope.
type Filter func(*gorm.DB) *gorm.DB

// Recorded keeps clips whose recording completed (length > 0).
func Recorded() Filter {
	return func(db *gorm.DB) *gorm.DB { return db.Where("length > ?", 0) }
}

// Pending keeps clips still recording or abandoned (length = 0).
func Pending() Filter {
	return func(db *gorm.DB) *gorm.DB { return db.Where("length = ?", 0) }
}

// CreatedAfter keeps clips created strictly after t.
func CreatedAfter(t time.Time) Filter {
	return func(db *gorm.DB) *gorm.DB { return db.Where("created_at > ?", t) }
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("WHISPERJAR_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens or creates the catalog at dbPath and creates
// the clips table if it is missing. Every failure wraps
// ErrStorageUnavailable.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating db dir: %w", ErrStorageUnavailable, err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite db: %w", ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: getting sql.DB from gorm: %w", ErrStorageUnavailable, err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Clip{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: auto migrate: %w", ErrStorageUnavailable, err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Insert persists clip, assigns its identity and returns it.
func (c *DBClient) Insert(clip *models.Clip) (uint, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	if clip == nil {
		return 0, errors.New("nil clip")
	}
	if err := validateName(clip.Name); err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	row := fromModel(clip)
	row.ID = 0
	if err := c.DB.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting clip: %w", err)
	}
	clip.ID = row.ID
	return row.ID, nil
}

// Update writes the in-memory fields of an inserted clip, matched by ID.
func (c *DBClient) Update(clip *models.Clip) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if clip == nil {
		return errors.New("nil clip")
	}
	if err := validateName(clip.Name); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.DB.Transaction(func(tx *gorm.DB) error {
		var existing Clip
		if err := tx.First(&existing, clip.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, clip.ID)
			}
			return fmt.Errorf("loading clip %d: %w", clip.ID, err)
		}
		err := tx.Model(&existing).Select("Name", "FileName", "Length").Updates(Clip{
			Name:     clip.Name,
			FileName: clip.FileName,
			Length:   clip.Length,
		}).Error
		if err != nil {
			return fmt.Errorf("updating clip %d: %w", clip.ID, err)
		}
		return nil
	})
}

// Rename changes the display name of clip id.
func (c *DBClient) Rename(id uint, name string) (*models.Clip, error) {
	clip, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	clip.Name = name
	if err := c.Update(clip); err != nil {
		return nil, err
	}
	return clip, nil
}

// Get loads one clip by identity.
func (c *DBClient) Get(id uint) (*models.Clip, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Clip
	if err := c.DB.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying clip %d: %w", id, err)
	}
	clip := row.toModel()
	return &clip, nil
}

// Query returns a snapshot of the clips matching all filters, in insertion
// order.
func (c *DBClient) Query(filters ...Filter) ([]models.Clip, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Clip
	if err := c.DB.Scopes(scopes(filters)...).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying clips: %w", err)
	}
	out := make([]models.Clip, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Count returns how many clips match all filters.
func (c *DBClient) Count(filters ...Filter) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Clip{}).Scopes(scopes(filters)...).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting clips: %w", err)
	}
	return int(n), nil
}

func scopes(filters []Filter) []func(*gorm.DB) *gorm.DB {
	out := make([]func(*gorm.DB) *gorm.DB, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func fromModel(m *models.Clip) Clip {
	return Clip{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		FileName:  m.FileName,
		Length:    m.Length,
	}
}

func (r Clip) toModel() models.Clip {
	return models.Clip{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		FileName:  r.FileName,
		Length:    r.Length,
	}
}
