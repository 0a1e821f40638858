package categorize

import "testing"

func TestSuggestExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"rent", Housing},
		{"aluguel", Housing},
		{"gasolina", Transport},
		{"netflix", Leisure},
		{"farmacia", Health},
		{"internet", Utilities},
		{"coffee", Food},
	}
	for _, tt := range tests {
		if got := Suggest(tt.input); got != tt.want {
			t.Errorf("Suggest(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSuggestKeywordMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Supermercado Extra", Food},
		{"Almoço no restaurante", Food},
		{"Conta de Luz", Utilities},
		{"Farmácia São João", Health},
		{"Uber to airport", Transport},
		{"Mensalidade da escola", Education},
		{"Tênis Nike", Shopping},
		{"ice cream", Food},
		{"business lunch", Food},
	}
	for _, tt := range tests {
		if got := Suggest(tt.input); got != tt.want {
			t.Errorf("Suggest(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSuggestIgnoresCaseAndAccents(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ALUGUEL", Housing},
		{"  Netflix  ", Leisure},
		{"FARMÁCIA", Health},
		{"condomínio", Housing},
	}
	for _, tt := range tests {
		if got := Suggest(tt.input); got != tt.want {
			t.Errorf("Suggest(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSuggestFallsBackToOther(t *testing.T) {
	for _, input := range []string{"", "   ", "xyz123", "!!!"} {
		if got := Suggest(input); got != Other {
			t.Errorf("Suggest(%q) = %q, want %q", input, got, Other)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Açougue  do João!", "acougue do joao"},
		{"  gas-bill ", "gas bill"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.input); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
