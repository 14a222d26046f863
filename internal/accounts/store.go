package accounts

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Persisted keys per account section. Unknown keys are preserved verbatim.
const (
	keyName    = "name"
	keyService = "service"
	keyActive  = "active"
)

// Record is one persisted account entry.
type Record struct {
	UID     string
	Name    string
	Service string
	Active  bool
}

// Store persists accounts in a section-per-account key/value file. Section
// name = account uid. Every mutation is a read-modify-write of the whole
// file, flushed through a temp file + rename so a crash mid-write never
// leaves a torn file behind.
type Store struct {
	path string
}

// NewStore creates a store bound to the given file path. The file is created
// on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// open loads the backing file. A missing or unparsable file is treated as an
// empty store and the file is rewritten to a valid empty state (self-healing
// on read).
func (s *Store) open() (*ini.File, error) {
	file, err := ini.Load(s.path)
	if err == nil {
		return file, nil
	}

	empty := ini.Empty()
	if werr := s.write(empty); werr != nil {
		return nil, fmt.Errorf("reinitializing account store: %w", werr)
	}
	return empty, nil
}

// write atomically replaces the backing file.
func (s *Store) write(file *ini.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating account store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".accounts-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := file.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Load reads all persisted records in file order.
func (s *Store) Load() ([]Record, error) {
	file, err := s.open()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		records = append(records, Record{
			UID:     section.Name(),
			Name:    section.Key(keyName).String(),
			Service: section.Key(keyService).String(),
			Active:  section.Key(keyActive).String() == "1",
		})
	}
	return records, nil
}

// Create persists an empty section under the uid.
func (s *Store) Create(uid string) error {
	file, err := s.open()
	if err != nil {
		return err
	}
	if _, err := file.NewSection(uid); err != nil {
		return err
	}
	return s.write(file)
}

// SetField rewrites one field of one account, preserving everything else in
// the file (including keys this version does not recognize).
func (s *Store) SetField(uid, key, value string) error {
	file, err := s.open()
	if err != nil {
		return err
	}
	section, err := file.GetSection(uid)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, uid)
	}
	section.Key(key).SetValue(value)
	return s.write(file)
}

// Delete removes the account's section.
func (s *Store) Delete(uid string) error {
	file, err := s.open()
	if err != nil {
		return err
	}
	if _, err := file.GetSection(uid); err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, uid)
	}
	file.DeleteSection(uid)
	return s.write(file)
}
