package patients

import "errors"

// ErrPatientNotFound is returned when a patient profile is not found
var ErrPatientNotFound = errors.New("patient profile not found")
