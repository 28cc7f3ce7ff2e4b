package paper

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"geometric", CategoryGeometric, false},
		{" Electrical ", CategoryElectrical, false},
		{"DIMENSIONLESS", CategoryDimensionless, false},
		{"other", CategoryOther, false},
		{"thermal", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_IsLive(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusActive, true},
		{StatusRetracted, false},
		{StatusSuperseded, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsLive(); got != tt.want {
			t.Errorf("%s.IsLive() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEmbeddingText(t *testing.T) {
	p := &Paper{Title: "Dust crystals", Background: "RF sheath"}
	if got := p.EmbeddingText(); got != "Title: Dust crystals. Context: RF sheath" {
		t.Errorf("Paper.EmbeddingText() = %q", got)
	}

	f := &ForceModel{Formula: `\phi(r)=\frac{Q}{r}e^{-r/\lambda_D}`, Meaning: "screened Coulomb"}
	want := `Interparticle Interaction: \phi(r)=\frac{Q}{r}e^{-r/\lambda_D}. Significance: screened Coulomb`
	if got := f.EmbeddingText(); got != want {
		t.Errorf("ForceModel.EmbeddingText() = %q, want %q", got, want)
	}
}

func TestSearchQuery(t *testing.T) {
	p := &Paper{Title: "Wakes", Keywords: []string{"ion flow", "dust"}}
	if got := p.SearchQuery(); got != "Wakes ion flow dust" {
		t.Errorf("SearchQuery() = %q", got)
	}
	p.Keywords = nil
	if got := p.SearchQuery(); got != "Wakes" {
		t.Errorf("SearchQuery() without keywords = %q", got)
	}
}

func TestKey(t *testing.T) {
	if got := Key("0123456789abcdef0123"); got != "0123456789abcdef" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key("abc"); got != "abc" {
		t.Errorf("Key(short) = %q", got)
	}
}

func TestParametersByCategory(t *testing.T) {
	p := &Paper{Parameters: []Parameter{
		{Category: CategoryGeometric, Name: "a"},
		{Category: CategoryElectrical, Name: "Q"},
		{Category: CategoryGeometric, Name: "d"},
	}}
	groups := p.ParametersByCategory()
	if len(groups[CategoryGeometric]) != 2 {
		t.Errorf("geometric = %d, want 2", len(groups[CategoryGeometric]))
	}
	if len(groups[CategoryElectrical]) != 1 {
		t.Errorf("electrical = %d, want 1", len(groups[CategoryElectrical]))
	}
}
