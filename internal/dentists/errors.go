package dentists

import "errors"

// ErrDentistNotFound is returned when a dentist is not found
var ErrDentistNotFound = errors.New("dentist not found")
