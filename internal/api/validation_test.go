package api

import (
	"strings"
	"testing"
)

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Code string `json:"code" validate:"required,max=32"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"code":"AB12CD34"}`, ""},
		{"missing field", `{}`, "code is required"},
		{"too long", `{"code":"` + strings.Repeat("A", 33) + `"}`, "code is too long"},
		{"unknown field", `{"code":"AB12CD34","extra":1}`, "invalid JSON body"},
		{"trailing garbage", `{"code":"AB12CD34"}{}`, "invalid JSON body"},
		{"not json", `nonsense`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst payload
			err := decodeAndValidate(strings.NewReader(tt.body), &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}
