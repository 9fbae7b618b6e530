package pickup

import (
	"fmt"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/apperr"
)

var (
	ErrNotFound   = apperr.New(apperr.CodeNotFound, "pickup not found")
	ErrConflict   = apperr.New(apperr.CodeConflict, "pickup state conflict")
	ErrValidation = apperr.New(apperr.CodeValidation, "invalid pickup")
	ErrForbidden  = apperr.New(apperr.CodeForbidden, "not allowed to modify this pickup")
	ErrStorage    = apperr.New(apperr.CodeStorage, "pickup store unavailable")
)

// transitionConflict names the rejected operation and the status that blocked it.
func transitionConflict(op string, current Status) error {
	return apperr.Wrap(apperr.CodeConflict, ErrConflict, fmt.Sprintf("cannot %s pickup: status is %s", op, current))
}

func lostUpdate(op string) error {
	return apperr.Wrap(apperr.CodeConflict, ErrConflict, fmt.Sprintf("cannot %s pickup: modified concurrently", op))
}

func invalid(details map[string]string) error {
	return apperr.Wrap(apperr.CodeValidation, ErrValidation, "invalid pickup").WithDetails(details)
}
