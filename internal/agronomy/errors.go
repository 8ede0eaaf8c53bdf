package agronomy

import (
	"errors"
	"fmt"
)

var (
	// ErrInputOutOfRange is wrapped by every FieldError
	ErrInputOutOfRange = errors.New("input out of range")

	// ErrInconsistentSequence marks caller integration errors: unordered
	// applications, a missing predecessor or an out-of-range edit index
	ErrInconsistentSequence = errors.New("inconsistent application sequence")
)

// FieldError rejects an implausible input value
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInputOutOfRange
}

// Severity grades an advisory warning
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Warning codes
const (
	WarnDoseAboveCap         = "DOSE_ABOVE_CAP"
	WarnDoseAboveCriticalCap = "DOSE_ABOVE_CRITICAL_CAP"
	WarnPHAfterHigh          = "PH_AFTER_HIGH"
	WarnOverliming           = "OVERLIMING_RISK"
)

// Warning is advisory output that never blocks an edit
type Warning struct {
	Code     string   `json:"code"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// HasCritical reports whether any warning is critical
func HasCritical(warnings []Warning) bool {
	for _, w := range warnings {
		if w.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
