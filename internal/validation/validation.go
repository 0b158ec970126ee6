// Package validation holds the struct validator shared by the CSV loader and
// the service write path, so a record accepted on one side is never refused
// by the other.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"housingcore/pkg/domain"

	"github.com/go-playground/validator/v10"
)

var nricPattern = regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`)

// New returns a validator with the housing tags and struct checks registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nric", validateNRIC)
	v.RegisterStructValidation(validatePerson, domain.Person{})
	v.RegisterStructValidation(validateProjectWindow, domain.Project{})
	return v
}

func validateNRIC(fl validator.FieldLevel) bool {
	return nricPattern.MatchString(fl.Field().String())
}

func validatePerson(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.Person)
	if _, err := domain.ParseMaritalStatus(string(p.MaritalStatus)); err != nil {
		sl.ReportError(p.MaritalStatus, "MaritalStatus", "MaritalStatus", "marital", "")
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		sl.ReportError(p.Role, "Role", "Role", "role", "")
	}
}

func validateProjectWindow(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.Project)
	if !p.Window().Valid() {
		sl.ReportError(p.CloseDate, "CloseDate", "CloseDate", "window", "")
	}
}

// Struct runs the struct tags of record and folds failures into
// domain.ErrMalformedRecord.
func Struct(v *validator.Validate, record any) error {
	err := v.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrMalformedRecord, strings.Join(fields, ", "))
}
