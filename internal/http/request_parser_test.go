package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/core"
)

func TestFlexAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{`120`, "120", false},
		{`120.5`, "120.5", false},
		{`"12,34"`, "12.34", false},
		{`"12.34"`, "12.34", false},
		{`-3`, "-3", false},
		{`"-3"`, "", true},
		{`"abc"`, "", true},
		{`true`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var a flexAmount
			err := json.Unmarshal([]byte(tt.input), &a)
			if tt.wantErr {
				assert.Error(t, err, "parsed %s", a.Decimal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.String())
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"categoryName":"Food","amount":"1,5"}`, ""},
		{"missing category", `{"amount":1}`, "categoryName is required"},
		{"missing amount", `{"categoryName":"Food"}`, "amount is required"},
		{"bad json", `{"categoryName":`, "malformed JSON body"},
		{"too large", `{"categoryName":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var req spendRequest
			err := decodeJSON(w, r, &req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "1.5", req.Amount.String())
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, core.PublicMessage(err))
		})
	}
}

func TestUpdateRequestToPatch(t *testing.T) {
	var req updateBudgetRequest
	require.NoError(t, json.Unmarshal([]byte(`{"period":"weekly","week":3,"categories":["Food",{"name":"Rent","allocated":"500"}]}`), &req))

	p := req.toPatch()
	require.NotNil(t, p.Period)
	assert.Equal(t, core.PeriodWeekly, *p.Period)
	assert.Nil(t, p.TotalBudget, "totalBudget should stay unset")
	require.Len(t, p.Categories, 2)
	require.NotNil(t, p.Categories[1].Allocated)
	assert.Equal(t, "500", p.Categories[1].Allocated.String())
}

func TestAnswerRequestAllowsQuestionZero(t *testing.T) {
	r := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"level":"basic","questionIndex":0}`))
	var req answerRequest
	require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &req))

	in := req.toInput()
	assert.Equal(t, 0, in.QuestionIndex)
	assert.Equal(t, "basic", in.Level)
}
