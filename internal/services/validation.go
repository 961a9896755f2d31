package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("chartkind", func(fl validator.FieldLevel) bool {
		return models.ChartKind(fl.Field().String()).Valid()
	})
	return v
}

// validateStruct runs struct tags and reports the first failure as a
// ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return errs.NewValidationError(fmt.Sprintf("%s failed %q validation", field, fe.Tag()))
	}
	return errs.NewValidationError(err.Error())
}

// validateLayout checks cell bounds and that no chart id appears twice.
func validateLayout(layout []models.LayoutCell) error {
	seen := make(map[string]bool, len(layout))
	for i, cell := range layout {
		if err := validateStruct(cell); err != nil {
			return errs.NewValidationError(fmt.Sprintf("layout[%d]: %s", i, err.Error()))
		}
		if cell.X+cell.W > models.GridColumns {
			return errs.NewValidationError(fmt.Sprintf("layout[%d]: cell overflows the %d-column grid", i, models.GridColumns))
		}
		if seen[cell.ID] {
			return errs.NewValidationError(fmt.Sprintf("layout[%d]: duplicate chart id %q", i, cell.ID))
		}
		seen[cell.ID] = true
	}
	return nil
}
