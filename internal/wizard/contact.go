package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ContactForm is the contact step input.
type ContactForm struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"required,phone"`
	Notes     string `json:"notes" validate:"max=500"`
	Consent   bool   `json:"consent" validate:"required"`
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
	return v
}

// Normalize trims surrounding whitespace from every text field.
func (f ContactForm) Normalize() ContactForm {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

// Validate returns localized messages keyed by field name, or nil.
func (f ContactForm) Validate() map[string]string {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": "Formulár sa nepodarilo overiť."}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Field() == "consent" {
		return "Na odoslanie rezervácie je potrebný súhlas so spracovaním osobných údajov."
	}
	switch fe.Tag() {
	case "required":
		return "Toto pole je povinné."
	case "min":
		return fmt.Sprintf("Zadajte aspoň %s znaky.", fe.Param())
	case "max":
		return fmt.Sprintf("Maximálne %s znakov.", fe.Param())
	case "email":
		return "Zadajte platnú e-mailovú adresu."
	case "phone":
		return "Zadajte platné telefónne číslo, napríklad +421900000000."
	default:
		return "Neplatná hodnota."
	}
}
