package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
)

// RegisterValidators adds the payment_method and loan_type tags to gin's
// validator. loanTypes are the types the pricing table knows.
func RegisterValidators(loanTypes []string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})

	if err := v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, ok := ledger.ParseMethod(fl.Field().String())
		return ok
	}); err != nil {
		return fmt.Errorf("failed to register payment_method validator: %w", err)
	}

	allowed := make(map[string]struct{}, len(loanTypes))
	for _, t := range loanTypes {
		allowed[strings.ToUpper(t)] = struct{}{}
	}
	if err := v.RegisterValidation("loan_type", func(fl validator.FieldLevel) bool {
		_, ok := allowed[strings.ToUpper(strings.TrimSpace(fl.Field().String()))]
		return ok
	}); err != nil {
		return fmt.Errorf("failed to register loan_type validator: %w", err)
	}
	return nil
}

// bindStrictJSON decodes the body rejecting unknown fields, then runs the binding tags.
func bindStrictJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return binding.Validator.ValidateStruct(obj)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "payment_method":
		return "must be one of UPI, DEBIT, CREDIT"
	case "loan_type":
		return "is not a supported loan type"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

// validationDetails turns a binding error into per-field details.
func validationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return details
}

// respondBindingError answers a request that failed decoding or validation.
func respondBindingError(c *gin.Context, err error) {
	if details := validationDetails(err); len(details) > 0 {
		RespondBadRequest(c, "Request validation failed", details...)
		return
	}
	RespondBadRequest(c, "Invalid request: "+err.Error())
}
