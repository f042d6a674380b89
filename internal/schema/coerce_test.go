package schema

import (
	"math"
	"testing"
)

// ----------------------------------------------------------------------------
// Number coercion
// ----------------------------------------------------------------------------

func TestCoerceNumber(t *testing.T) {
	col := ColumnDefinition{Key: "qty", Type: KindNumber}

	tests := []struct {
		name    string
		input   any
		want    float64
		wantErr bool
	}{
		{name: "numeric string", input: "50", want: 50},
		{name: "decimal string", input: "12.5", want: 12.5},
		{name: "negative string", input: "-3.25", want: -3.25},
		{name: "string with whitespace", input: " 42 ", want: 42},
		{name: "float64 passthrough", input: 99.5, want: 99.5},
		{name: "int input", input: 7, want: 7},
		{name: "non-numeric string", input: "abc", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "boolean input", input: true, wantErr: true},
		{name: "NaN string", input: "NaN", wantErr: true},
		{name: "Inf string", input: "Inf", wantErr: true},
		{name: "negative infinity string", input: "-Infinity", wantErr: true},
		{name: "NaN float", input: math.NaN(), wantErr: true},
		{name: "Inf float", input: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(col, tt.input, 0)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Coerce(%v) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%v) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Coerce(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Date coercion
// ----------------------------------------------------------------------------

func TestCoerceDate(t *testing.T) {
	col := ColumnDefinition{Key: "delivery_date", Type: KindDate}

	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{name: "iso date", input: "2024-09-10", want: "2024-09-10"},
		{name: "us slash date", input: "09/10/2024", want: "2024-09-10"},
		{name: "single digit slash date", input: "9/1/2024", want: "2024-09-01"},
		{name: "dotted date", input: "10.09.2024", want: "2024-10-09"},
		{name: "written month", input: "Sep 10, 2024", want: "2024-09-10"},
		{name: "compact date", input: "20240910", want: "2024-09-10"},
		{name: "canonical form is idempotent", input: "2024-12-31", want: "2024-12-31"},
		{name: "unparseable", input: "next tuesday", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(col, tt.input, 0)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Coerce(%v) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%v) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Coerce(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Boolean coercion
// ----------------------------------------------------------------------------

func TestCoerceBoolean(t *testing.T) {
	col := ColumnDefinition{Key: "urgent", Type: KindBoolean}

	tests := []struct {
		name  string
		input any
		want  bool
	}{
		{name: "bool true", input: true, want: true},
		{name: "bool false", input: false, want: false},
		{name: "string true", input: "true", want: true},
		{name: "string one", input: "1", want: true},
		{name: "string yes", input: "yes", want: true},
		{name: "number one", input: float64(1), want: true},
		{name: "string no is false", input: "no", want: false},
		{name: "string TRUE is false", input: "TRUE", want: false},
		{name: "arbitrary string is false", input: "maybe", want: false},
		{name: "number zero is false", input: float64(0), want: false},
		{name: "number two is false", input: float64(2), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(col, tt.input, 0)
			if err != nil {
				t.Fatalf("Coerce(%v) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Coerce(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Select and text coercion
// ----------------------------------------------------------------------------

func TestCoerceSelect(t *testing.T) {
	col := ColumnDefinition{
		Key:     "status",
		Type:    KindSelect,
		Options: []string{"pending", "shipped", "delivered"},
	}

	if got, err := Coerce(col, "shipped", 0); err != nil || got != "shipped" {
		t.Errorf("Coerce(shipped) = %v, %v; want shipped, nil", got, err)
	}
	if _, err := Coerce(col, "lost", 0); err == nil {
		t.Error("Coerce(lost) succeeded, want error for value outside options")
	}
	if _, err := Coerce(col, "Shipped", 0); err == nil {
		t.Error("Coerce(Shipped) succeeded, want error: options are exact match")
	}
}

func TestCoerceText(t *testing.T) {
	col := ColumnDefinition{Key: "notes", Type: KindText}

	if got, err := Coerce(col, "hello", 0); err != nil || got != "hello" {
		t.Errorf("Coerce(hello) = %v, %v; want hello, nil", got, err)
	}

	// Numbers cast to their shortest string form.
	if got, err := Coerce(col, float64(12), 0); err != nil || got != "12" {
		t.Errorf("Coerce(12) = %v, %v; want \"12\", nil", got, err)
	}

	// Length ceiling.
	if _, err := Coerce(col, "abcdef", 5); err == nil {
		t.Error("Coerce with maxLen=5 accepted a 6-char string, want error")
	}
	if _, err := Coerce(col, "abcde", 5); err != nil {
		t.Errorf("Coerce with maxLen=5 rejected a 5-char string: %v", err)
	}
}

func TestCoerceNilPassthrough(t *testing.T) {
	for _, kind := range []Kind{KindText, KindNumber, KindDate, KindSelect, KindBoolean} {
		col := ColumnDefinition{Key: "c", Type: kind, Options: []string{"a"}}
		got, err := Coerce(col, nil, 0)
		if err != nil || got != nil {
			t.Errorf("Coerce(nil) for %s = %v, %v; want nil, nil", kind, got, err)
		}
	}
}
