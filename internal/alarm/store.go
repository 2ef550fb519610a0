package alarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrAlarmNotFound = errors.New("alarm: not found")
	ErrInvalidAlarm  = errors.New("alarm: invalid")
)

// Day codes as stored by the companion app.
const (
	DAY_MONDAY    = "LUN"
	DAY_TUESDAY   = "MAR"
	DAY_WEDNESDAY = "MIE"
	DAY_THURSDAY  = "JUE"
	DAY_FRIDAY    = "VIE"
	DAY_SATURDAY  = "SAB"
	DAY_SUNDAY    = "DOM"
)

var timeRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// cron day-of-week names, keyed by day code
var dayCodes = map[string]string{
	DAY_MONDAY:    "MON",
	DAY_TUESDAY:   "TUE",
	DAY_WEDNESDAY: "WED",
	DAY_THURSDAY:  "THU",
	DAY_FRIDAY:    "FRI",
	DAY_SATURDAY:  "SAT",
	DAY_SUNDAY:    "SUN",
}

type Alarm struct {
	ID         string   `json:"id"`
	Medication string   `json:"medication"`
	DosageMg   float64  `json:"dosage_mg"`
	Time       string   `json:"time"`
	Active     bool     `json:"active"`
	Days       []string `json:"days"`
}

func (a Alarm) Validate() error {
	if a.Medication == "" {
		return fmt.Errorf("%w: medication is required", ErrInvalidAlarm)
	}
	if a.DosageMg < 0 {
		return fmt.Errorf("%w: dosage must not be negative", ErrInvalidAlarm)
	}
	if !timeRegexp.MatchString(a.Time) {
		return fmt.Errorf("%w: time must be HH:MM, got %q", ErrInvalidAlarm, a.Time)
	}
	for _, d := range a.Days {
		if _, ok := dayCodes[d]; !ok {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidAlarm, d)
		}
	}
	return nil
}

// Store keeps the alarm list as a single JSON document.
type Store struct {
	fs     afero.Fs
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewStore(fs afero.Fs, path string, logger *zap.Logger) *Store {
	return &Store{
		fs:     fs,
		path:   path,
		logger: logger.With(zap.String("component", "alarms")),
	}
}

func (s *Store) Load() ([]Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Save(alarms []Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alarms {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return s.save(alarms)
}

// Add stores a copy of alarm under a fresh ID and returns it.
func (s *Store) Add(alarm Alarm) (Alarm, error) {
	if err := alarm.Validate(); err != nil {
		return Alarm{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	alarms, err := s.load()
	if err != nil {
		return Alarm{}, err
	}
	alarm.ID = uuid.NewString()
	if alarm.Days == nil {
		alarm.Days = []string{}
	}
	alarms = append(alarms, alarm)
	if err := s.save(alarms); err != nil {
		return Alarm{}, err
	}
	s.logger.Debug("alarms: added", zap.String("id", alarm.ID))
	return alarm, nil
}

func (s *Store) Update(id string, alarm Alarm) (Alarm, error) {
	if err := alarm.Validate(); err != nil {
		return Alarm{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	alarms, err := s.load()
	if err != nil {
		return Alarm{}, err
	}
	for i := range alarms {
		if alarms[i].ID == id {
			alarm.ID = id
			if alarm.Days == nil {
				alarm.Days = []string{}
			}
			alarms[i] = alarm
			if err := s.save(alarms); err != nil {
				return Alarm{}, err
			}
			return alarm, nil
		}
	}
	return Alarm{}, fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarms, err := s.load()
	if err != nil {
		return err
	}
	for i := range alarms {
		if alarms[i].ID == id {
			return s.save(append(alarms[:i], alarms[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
}

// Clear removes the stored document.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) load() ([]Alarm, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Alarm{}, nil
	}
	if err != nil {
		return nil, err
	}
	alarms := []Alarm{}
	if len(data) == 0 {
		return alarms, nil
	}
	if err := json.Unmarshal(data, &alarms); err != nil {
		return nil, fmt.Errorf("alarm: corrupt store %s: %w", s.path, err)
	}
	return alarms, nil
}

func (s *Store) save(alarms []Alarm) error {
	if alarms == nil {
		alarms = []Alarm{}
	}
	data, err := json.MarshalIndent(alarms, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	// write then rename, a crash never leaves a half written list
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.path)
}
