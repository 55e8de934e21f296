package evidence

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ruteri/challenge-oracle-client/interfaces"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateItem checks a single evidence item. index is reported in the error.
func ValidateItem(index int, item interfaces.EvidenceItem) error {
	err := validate.Struct(item)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &interfaces.ValidationError{
			Index:  index,
			Field:  fe.Field(),
			Reason: "is " + fe.Tag(),
		}
	}
	return &interfaces.ValidationError{Index: index, Reason: err.Error()}
}

// ValidateBatch checks that items is non-empty and every element carries a
// challenge id and evidence. The first offending element is reported.
func ValidateBatch(items []interfaces.EvidenceItem) error {
	if len(items) == 0 {
		return &interfaces.ValidationError{Index: -1, Field: "responses", Reason: "responses must not be empty"}
	}
	for i, item := range items {
		if err := ValidateItem(i, item); err != nil {
			return err
		}
	}
	return nil
}
