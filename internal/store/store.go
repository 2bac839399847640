// Package store persists devices, conversation turns, and computed stats
// bundles in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kumalab/kaiwastats/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned when a device or stats row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides SQLite-backed persistence for the analytics service.
type Store struct {
	db *sql.DB

	// maxHistory caps the retained turns per device; 0 keeps everything.
	maxHistory int
}

// Open opens or creates the database at the given path. maxHistory bounds
// the per-device turn history; older turns beyond the cap are dropped on
// append.
func Open(dbPath string, maxHistory int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, maxHistory: maxHistory}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDevice registers a device connection. The first sighting creates
// the row; later sightings bump last_seen and the connection counter while
// keeping first_seen. Returns the stored record.
func (s *Store) UpsertDevice(mac, name, location string, now time.Time) (model.DeviceInfo, error) {
	id := model.DeviceID(mac, name)
	ts := now.UTC().Format(time.RFC3339)

	_, err := s.db.Exec(`INSERT INTO devices
		(device_id, name, mac_address, location, first_seen, last_seen, total_connections)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			last_seen = excluded.last_seen,
			total_connections = total_connections + 1`,
		id, name, mac, location, ts, ts,
	)
	if err != nil {
		return model.DeviceInfo{}, fmt.Errorf("upserting device %s: %w", id, err)
	}
	return s.Device(id)
}

// Device returns one device record, or ErrNotFound.
func (s *Store) Device(deviceID string) (model.DeviceInfo, error) {
	row := s.db.QueryRow(`SELECT device_id, name, mac_address, location,
		first_seen, last_seen, total_connections
		FROM devices WHERE device_id = ?`, deviceID)

	info, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceInfo{}, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}
	return info, err
}

// DeviceIDs returns all registered device IDs in sorted order.
func (s *Store) DeviceIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT device_id FROM devices ORDER BY device_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Devices returns all device records ordered by ID.
func (s *Store) Devices() ([]model.DeviceInfo, error) {
	rows, err := s.db.Query(`SELECT device_id, name, mac_address, location,
		first_seen, last_seen, total_connections
		FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var devices []model.DeviceInfo
	for rows.Next() {
		info, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, info)
	}
	return devices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (model.DeviceInfo, error) {
	var info model.DeviceInfo
	var location sql.NullString
	var firstSeen, lastSeen string

	err := row.Scan(&info.DeviceID, &info.Name, &info.MACAddress, &location,
		&firstSeen, &lastSeen, &info.TotalConnections)
	if err != nil {
		return model.DeviceInfo{}, err
	}

	if location.Valid {
		info.Location = location.String
	}
	info.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	info.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	return info, nil
}

// AppendTurn stores one conversation turn. A missing turn ID is assigned.
// When a history cap is configured, the oldest turns beyond the cap are
// dropped in the same transaction. Returns the stored turn.
func (s *Store) AppendTurn(turn model.Turn) (model.Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return model.Turn{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO turns
		(id, device_id, user_message, bot_response, timestamp, location)
		VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.DeviceID, turn.UserMessage, turn.BotResponse,
		turn.Timestamp.UTC().Format(time.RFC3339), turn.Location,
	)
	if err != nil {
		return model.Turn{}, fmt.Errorf("appending turn for %s: %w", turn.DeviceID, err)
	}

	if s.maxHistory > 0 {
		_, err = tx.Exec(`DELETE FROM turns WHERE device_id = ? AND rowid NOT IN (
			SELECT rowid FROM turns WHERE device_id = ?
			ORDER BY timestamp DESC, rowid DESC LIMIT ?)`,
			turn.DeviceID, turn.DeviceID, s.maxHistory,
		)
		if err != nil {
			return model.Turn{}, fmt.Errorf("trimming history for %s: %w", turn.DeviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Turn{}, err
	}
	return turn, nil
}

// Turns returns the full retained history of one device, oldest first.
func (s *Store) Turns(deviceID string) ([]model.Turn, error) {
	rows, err := s.db.Query(`SELECT id, device_id, user_message, bot_response,
		timestamp, location
		FROM turns WHERE device_id = ? ORDER BY timestamp, rowid`, deviceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var location sql.NullString
		var ts string
		if err := rows.Scan(&t.ID, &t.DeviceID, &t.UserMessage, &t.BotResponse, &ts, &location); err != nil {
			return nil, err
		}
		if location.Valid {
			t.Location = location.String
		}
		t.Timestamp, _ = time.Parse(time.RFC3339, ts)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// TurnCount returns the retained turn count for one device.
func (s *Store) TurnCount(deviceID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM turns WHERE device_id = ?", deviceID).Scan(&count)
	return count, err
}

// SaveStats persists one computed stats bundle, replacing any previous
// bundle for the device.
func (s *Store) SaveStats(stats model.DeviceStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats for %s: %w", stats.DeviceID, err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO device_stats
		(device_id, computed_at, source_turn_count, payload)
		VALUES (?, ?, ?, ?)`,
		stats.DeviceID, stats.ComputedAt.UTC().Format(time.RFC3339), stats.SourceTurnCount, payload,
	)
	if err != nil {
		return fmt.Errorf("saving stats for %s: %w", stats.DeviceID, err)
	}
	return nil
}

// LoadStats returns the persisted bundle for one device, or ErrNotFound.
func (s *Store) LoadStats(deviceID string) (model.DeviceStats, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM device_stats WHERE device_id = ?", deviceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceStats{}, fmt.Errorf("stats for %s: %w", deviceID, ErrNotFound)
	}
	if err != nil {
		return model.DeviceStats{}, err
	}

	var stats model.DeviceStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return model.DeviceStats{}, fmt.Errorf("decoding stats for %s: %w", deviceID, err)
	}
	return stats, nil
}

// LoadAllStats reads every persisted bundle, used to warm the in-memory
// cache on startup. Undecodable rows are skipped.
func (s *Store) LoadAllStats() ([]model.DeviceStats, error) {
	rows, err := s.db.Query("SELECT payload FROM device_stats")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var all []model.DeviceStats
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stats model.DeviceStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			continue
		}
		all = append(all, stats)
	}
	return all, rows.Err()
}
