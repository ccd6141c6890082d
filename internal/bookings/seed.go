package bookings

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/dental-concierge/internal/clinic"
)

//go:embed seed/doctors.yaml
var defaultRoster []byte

type rosterFile struct {
	Doctors []rosterDoctor `yaml:"doctors"`
}

type rosterDoctor struct {
	Name   string `yaml:"name"`
	Branch string `yaml:"branch"`
	Days   string `yaml:"days"`
	Opens  string `yaml:"opens"`
	Closes string `yaml:"closes"`
}

// DefaultRoster returns the built-in doctor roster.
func DefaultRoster() ([]Doctor, error) {
	return ParseRoster(bytes.NewReader(defaultRoster))
}

// LoadRoster reads a roster file from disk.
func LoadRoster(path string) ([]Doctor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bookings: open roster: %w", err)
	}
	defer f.Close()
	return ParseRoster(f)
}

// ParseRoster decodes a YAML roster. Every doctor needs a name, a branch and
// a valid working window.
func ParseRoster(r io.Reader) ([]Doctor, error) {
	var file rosterFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("bookings: decode roster: %w", err)
	}
	out := make([]Doctor, 0, len(file.Doctors))
	for i, rd := range file.Doctors {
		if strings.TrimSpace(rd.Name) == "" || strings.TrimSpace(rd.Branch) == "" {
			return nil, fmt.Errorf("bookings: roster entry %d: name and branch required", i)
		}
		days, err := clinic.ParseWeekdays(rd.Days)
		if err != nil {
			return nil, fmt.Errorf("bookings: roster entry %d: %w", i, err)
		}
		w := clinic.Window{Days: days, Open: rd.Opens, Close: rd.Closes}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("bookings: roster entry %d: %w", i, err)
		}
		out = append(out, Doctor{
			Name:   strings.TrimSpace(rd.Name),
			Branch: strings.TrimSpace(rd.Branch),
			Window: w,
		})
	}
	return out, nil
}

// Seed writes doctors through w, stopping at the first failure.
func Seed(ctx context.Context, w DoctorWriter, doctors []Doctor) error {
	for i := range doctors {
		if err := w.SaveDoctor(ctx, &doctors[i]); err != nil {
			return fmt.Errorf("bookings: seed %s: %w", doctors[i].Name, err)
		}
	}
	return nil
}
