package medication

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrMedicationNotFound = errors.New("medication: not found")
	ErrInvalidMedication  = errors.New("medication: invalid")
)

type Medication struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DoseMg    float64   `json:"dose_mg"`
	Notes     string    `json:"notes,omitempty"`
	StartDate time.Time `json:"start_date"`
}

func (m Medication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMedication)
	}
	if m.DoseMg < 0 {
		return fmt.Errorf("%w: dose must not be negative", ErrInvalidMedication)
	}
	return nil
}

// Store keeps the medication list as a single JSON document, newest first.
type Store struct {
	fs     afero.Fs
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

func NewStore(fs afero.Fs, path string, logger *zap.Logger) *Store {
	return &Store{
		fs:     fs,
		path:   path,
		now:    time.Now,
		logger: logger.With(zap.String("component", "medications")),
	}
}

func (s *Store) List() ([]Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Get(id string) (Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meds, err := s.load()
	if err != nil {
		return Medication{}, err
	}
	for _, m := range meds {
		if m.ID == id {
			return m, nil
		}
	}
	return Medication{}, fmt.Errorf("%w: %s", ErrMedicationNotFound, id)
}

// Add stores med under a fresh ID. A zero start date means now.
func (s *Store) Add(med Medication) (Medication, error) {
	if err := med.Validate(); err != nil {
		return Medication{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meds, err := s.load()
	if err != nil {
		return Medication{}, err
	}
	med.ID = uuid.NewString()
	if med.StartDate.IsZero() {
		med.StartDate = s.now().Truncate(time.Second)
	}
	meds = append([]Medication{med}, meds...)
	if err := s.save(meds); err != nil {
		return Medication{}, err
	}
	s.logger.Debug("medications: added", zap.String("id", med.ID))
	return med, nil
}

// Update replaces the stored entry. A zero start date keeps the stored one.
func (s *Store) Update(id string, med Medication) (Medication, error) {
	if err := med.Validate(); err != nil {
		return Medication{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meds, err := s.load()
	if err != nil {
		return Medication{}, err
	}
	for i := range meds {
		if meds[i].ID == id {
			med.ID = id
			if med.StartDate.IsZero() {
				med.StartDate = meds[i].StartDate
			}
			meds[i] = med
			if err := s.save(meds); err != nil {
				return Medication{}, err
			}
			return med, nil
		}
	}
	return Medication{}, fmt.Errorf("%w: %s", ErrMedicationNotFound, id)
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meds, err := s.load()
	if err != nil {
		return err
	}
	for i := range meds {
		if meds[i].ID == id {
			return s.save(append(meds[:i], meds[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrMedicationNotFound, id)
}

func (s *Store) load() ([]Medication, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Medication{}, nil
	}
	if err != nil {
		return nil, err
	}
	meds := []Medication{}
	if len(data) == 0 {
		return meds, nil
	}
	if err := json.Unmarshal(data, &meds); err != nil {
		return nil, fmt.Errorf("medication: corrupt store %s: %w", s.path, err)
	}
	return meds, nil
}

func (s *Store) save(meds []Medication) error {
	if meds == nil {
		meds = []Medication{}
	}
	data, err := json.MarshalIndent(meds, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}
