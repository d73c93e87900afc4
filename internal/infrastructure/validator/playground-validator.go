package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type playgroundValidator struct {
	driver *validator.Validate
}

var _ Validator = (*playgroundValidator)(nil)

func NewPlaygroundValidator() Validator {
	driver := validator.New()
	driver.RegisterTagNameFunc(func(fld reflect.StructField) string {
		jsonName := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if jsonName == "-" || jsonName == "" {
			jsonName = fld.Name
		}
		return jsonName
	})
	return &playgroundValidator{
		driver: driver,
	}
}

func (v *playgroundValidator) Validate(i any) error {
	return v.driver.Struct(i)
}

func (v *playgroundValidator) ToMap(err error) map[string]any {
	res := make(map[string]any)
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			res[fe.Field()] = map[string]any{
				"message": v.translateTag(fe),
				"code":    fe.Tag(),
				"param":   fe.Param(),
			}
		}
	}
	return res
}

func (v *playgroundValidator) ToDetails(err error) []map[string]any {
	var res []map[string]any

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return res
	}

	for _, fe := range ve {
		res = append(res, map[string]any{
			"field":   fe.Field(),
			"message": v.translateTag(fe),
			"code":    fe.Tag(),
			"param":   fe.Param(),
		})
	}
	return res
}

func (v *playgroundValidator) translateTag(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)

	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)

	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)

	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)

	case "max", "lte":
		return fmt.Sprintf("%s must not be greater than %s", field, param)

	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)

	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)

	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
