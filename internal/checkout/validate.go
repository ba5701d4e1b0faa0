package checkout

import (
	"errors"
	"fmt"
	"regexp"

	"checkout-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var vnPhone = regexp.MustCompile(`^(0|\+84)(3|5|7|8|9)[0-9]{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		return vnPhone.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

func ValidPhone(phone string) bool {
	return vnPhone.MatchString(phone)
}

func validateCustomer(info domain.CustomerInfo) error {
	err := validate.Struct(info)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("customer", err.Error())
	}
	fe := verrs[0]
	return domain.NewValidationError(lowerFirst(fe.Field()), message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "vnphone":
		return "is not a valid phone number"
	case "email":
		return "is not a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
