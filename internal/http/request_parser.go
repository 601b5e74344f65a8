// Package http provides the JSON API server and its handlers.
//
// This file implements request decoding and validation. Bodies are size
// limited, decoded into request DTOs and checked with validator struct tags
// before they are converted into domain inputs.

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"finbits/internal/core"
	"finbits/internal/services"
)

const maxBodyBytes = 1 << 20

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
	return v
}

// flexAmount accepts an amount as a JSON number or as a string with either
// a dot or a comma separator.
type flexAmount struct {
	decimal.Decimal
}

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return core.Validationf("invalid amount %s", raw)
	}
	a.Decimal = d
	return nil
}

func (a *flexAmount) ptr() *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := a.Decimal
	return &d
}

type (
	createBudgetRequest struct {
		Period      string               `json:"period" validate:"required,oneof=monthly weekly"`
		TotalBudget *flexAmount          `json:"totalBudget" validate:"required"`
		Categories  []core.CategoryInput `json:"categories" validate:"required,min=1"`
		Month       *int                 `json:"month" validate:"omitempty,min=1,max=12"`
		Week        *int                 `json:"week" validate:"omitempty,min=1,max=52"`
		SavingsGoal *flexAmount          `json:"savingsGoal"`
	}

	updateBudgetRequest struct {
		Period      *string              `json:"period" validate:"omitempty,oneof=monthly weekly"`
		TotalBudget *flexAmount          `json:"totalBudget"`
		Categories  []core.CategoryInput `json:"categories" validate:"omitempty,min=1"`
		Month       *int                 `json:"month" validate:"omitempty,min=1,max=12"`
		Week        *int                 `json:"week" validate:"omitempty,min=1,max=52"`
		SavingsGoal *flexAmount          `json:"savingsGoal"`
	}

	spendRequest struct {
		CategoryName string      `json:"categoryName" validate:"required"`
		Amount       *flexAmount `json:"amount" validate:"required"`
	}

	generateRequest struct {
		Title    string `json:"title" validate:"required,max=200"`
		Topic    string `json:"topic" validate:"max=200"`
		Category string `json:"category"`
		Language string `json:"language" validate:"omitempty,max=10"`
	}

	answerRequest struct {
		Level         string `json:"level" validate:"required"`
		QuestionIndex *int   `json:"questionIndex" validate:"required"`
		IsCorrect     bool   `json:"isCorrect"`
		Answer        string `json:"answer" validate:"omitempty,len=1"`
	}
)

func (req createBudgetRequest) toInput() core.BudgetInput {
	return core.BudgetInput{
		Period:      core.Period(req.Period),
		TotalBudget: req.TotalBudget.ptr(),
		Categories:  req.Categories,
		Month:       req.Month,
		Week:        req.Week,
		SavingsGoal: req.SavingsGoal.ptr(),
	}
}

func (req updateBudgetRequest) toPatch() core.BudgetPatch {
	p := core.BudgetPatch{
		TotalBudget: req.TotalBudget.ptr(),
		Categories:  req.Categories,
		Month:       req.Month,
		Week:        req.Week,
		SavingsGoal: req.SavingsGoal.ptr(),
	}
	if req.Period != nil {
		period := core.Period(*req.Period)
		p.Period = &period
	}
	return p
}

func (req generateRequest) toDomain() (core.GenerateRequest, error) {
	return core.NewGenerateRequest(req.Title, req.Topic, req.Category, req.Language)
}

func (req answerRequest) toInput() services.AnswerInput {
	return services.AnswerInput{
		Level:         req.Level,
		QuestionIndex: *req.QuestionIndex,
		IsCorrect:     req.IsCorrect,
		Answer:        req.Answer,
	}
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// Every failure is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var de *core.Error
		if errors.As(err, &de) {
			return err
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Validationf("request body too large")
		}
		return core.Validationf("malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns the first validator failure into a readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return core.Validationf("invalid request")
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return core.Validationf("%s is required", field)
	case "oneof":
		return core.Validationf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return core.Validationf("%s must be at least %s", field, fe.Param())
	case "max":
		return core.Validationf("%s must be at most %s", field, fe.Param())
	case "len":
		return core.Validationf("%s must be %s characters long", field, fe.Param())
	default:
		return core.Validationf("%s is invalid", field)
	}
}

func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", core.Validationf("id is required")
	}
	return id, nil
}
