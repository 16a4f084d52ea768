package repository

import (
	"errors"

	"github.com/Success-Framework/SFManagers-sub001/internal/errs"
	"gorm.io/gorm"
)

// translate maps driver errors onto the errs taxonomy. what names the entity
// for NotFound messages.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.Wrap(errs.CodeConflict, what+" already exists", err)
	default:
		return errs.Unavailable("storage failure", err)
	}
}
