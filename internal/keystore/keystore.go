// Package keystore persists the RX-side public-key directory keyed by
// callsign (spec §3 SessionState: "public-key directory keyed by
// callsign"). Grounded on the teacher's pkg/database (db.go, models.go,
// dmruser_repository.go): the same pure-Go modernc.org/sqlite driver, WAL
// pragmas, GORM logger adapter wrapping internal/logging, and a
// model+repository split.
//
// Keys are stored as raw elliptic-curve points (crypto/elliptic's
// uncompressed Marshal format) rather than X.509 DER: Go's x509 package
// only recognizes the NIST curve OIDs, and BrainpoolP256r1 (internal/brainpool)
// has none, so PKIX marshaling is unavailable for this curve.
package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"github.com/sleipnir-radio/sleipnir/internal/brainpool"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

// ErrNotFound is returned when a callsign has no stored public key.
var ErrNotFound = errors.New("keystore: callsign not found")

// PublicKeyRecord is the persisted row for one station's signing key.
type PublicKeyRecord struct {
	Callsign  string    `gorm:"primarykey;size:5" json:"callsign"`
	PointDER  []byte    `gorm:"not null" json:"point_der"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name rather than letting GORM pluralize it.
func (PublicKeyRecord) TableName() string {
	return "public_keys"
}

// Config holds keystore persistence configuration (spec §10.2's bootstrap
// document supplies this).
type Config struct {
	Path string
}

// Store wraps the GORM/SQLite-backed public-key directory.
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open opens (creating if necessary) the public-key directory database,
// matching the teacher's NewDB: pure-Go driver, WAL mode, busy timeout,
// and auto-migration.
func Open(cfg Config, log *logging.Logger) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "sleipnir-keys.db"
	}
	if log == nil {
		log = logging.New(logging.Config{Level: "info"})
	}
	log = log.WithComponent("keystore")

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("keystore: create directory: %w", err)
		}
	}

	gormLog := gormlogger.New(&gormLogAdapter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("keystore: open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("keystore: underlying db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("keystore: %s: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&PublicKeyRecord{}); err != nil {
		return nil, fmt.Errorf("keystore: migrate: %w", err)
	}

	log.Info("keystore opened", logging.String("path", cfg.Path))
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert stores pub under callsign, replacing any prior key for that
// callsign (key rotation, spec §9's process-wide key-store replacement
// expressed as an explicit, session-owned value rather than a global).
func (s *Store) Upsert(callsign string, pub *ecdsa.PublicKey) error {
	callsign = normalizeCallsign(callsign)
	rec := PublicKeyRecord{
		Callsign:  callsign,
		PointDER:  marshalPoint(pub),
		UpdatedAt: time.Now(),
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("keystore: upsert %s: %w", callsign, err)
	}
	return nil
}

// Lookup retrieves the stored public key for callsign.
func (s *Store) Lookup(callsign string) (*ecdsa.PublicKey, error) {
	callsign = normalizeCallsign(callsign)
	var rec PublicKeyRecord
	if err := s.db.Where("callsign = ?", callsign).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keystore: lookup %s: %w", callsign, err)
	}
	return unmarshalPoint(rec.PointDER)
}

// Count returns the number of stored keys.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.Model(&PublicKeyRecord{}).Count(&n).Error
	return n, err
}

// Known reports whether callsign has a stored public key, for RX policy
// decisions such as rejecting traffic from unrecognized stations before
// the (currently unverifiable, see internal/crypto's DESIGN.md note on the
// 32-byte truncated signature) auth-frame check even runs.
func (s *Store) Known(callsign string) bool {
	_, err := s.Lookup(callsign)
	return err == nil
}

func marshalPoint(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(brainpool.P256r1(), pub.X, pub.Y)
}

func unmarshalPoint(data []byte) (*ecdsa.PublicKey, error) {
	curve := brainpool.P256r1()
	x, y := elliptic.Unmarshal(curve, data)
	if x == nil {
		return nil, fmt.Errorf("keystore: malformed stored point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func normalizeCallsign(callsign string) string {
	return strings.ToUpper(strings.TrimSpace(callsign))
}

// gormLogAdapter routes GORM's log lines through internal/logging, exactly
// as the teacher's database package does for its own logger.
type gormLogAdapter struct {
	log *logging.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}
