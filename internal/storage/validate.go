package storage

import (
	"fmt"
	"time"

	"market-feature-lab/internal/domain"
)

// ValidatePanel checks a panel before persistence.
func ValidatePanel(name string, p *domain.Panel) error {
	if name == "" || p == nil {
		return ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// CheckBatchDates returns ErrDuplicateKey if dates repeat by calendar day.
func CheckBatchDates(dates []time.Time) error {
	seen := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		d = domain.Day(d)
		if _, dup := seen[d]; dup {
			return ErrDuplicateKey
		}
		seen[d] = struct{}{}
	}
	return nil
}
