package storage

import (
	"github.com/roman-kulish/sniper-scope/internal/scope"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScope(row rowScanner) (*scope.Scope, error) {
	var s scope.Scope
	if err := row.Scan(&s.ID, &s.Name, &s.Frequency, &s.Amplitude, &s.Phase, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}
