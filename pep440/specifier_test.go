package pep440

import (
	"reflect"
	"testing"
)

func TestSpecifierCheck(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{"==2.28.0", "2.28.0", true},
		{"==2.28.0", "2.28.1", false},
		{"==2.28", "2.28.0", true},
		{"!=2.28.0", "2.28.0", false},
		{"!=2.28.0", "2.29.0", true},
		{">=2.0", "2.0.0", true},
		{">=2.0", "1.9.9", false},
		{">2.0", "2.0", false},
		{">2.0", "2.0.1", true},
		{"<3.0", "2.32.0", true},
		{"<3.0", "3.0.0", false},
		{"<=3.0", "3.0", true},
		{"~=2.2", "2.9.0", true},
		{"~=2.2", "2.1.0", false},
		{"~=2.2", "3.0.0", false},
		{"~=2.2.1", "2.2.5", true},
		{"~=2.2.1", "2.3.0", false},
		{"==2.1.*", "2.1.7", true},
		{"==2.1.*", "2.2.0", false},
		{"!=2.1.*", "2.1.7", false},
		{"!=2.1.*", "2.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec+" "+tt.version, func(t *testing.T) {
			spec, err := ParseSpecifier(tt.spec)
			if err != nil {
				t.Fatalf("ParseSpecifier(%q): %v", tt.spec, err)
			}
			if got := spec.Check(MustParse(tt.version)); got != tt.want {
				t.Errorf("(%s).Check(%s) = %v, want %v", tt.spec, tt.version, got, tt.want)
			}
		})
	}
}

func TestParseSpecifierErrors(t *testing.T) {
	for _, in := range []string{"=2.0", ">=", "~=1.*", "2.0", ">=foo bar"} {
		if _, err := ParseSpecifier(in); err == nil {
			t.Errorf("ParseSpecifier(%q) expected error", in)
		}
	}
}

func TestSpecifierSetIntersect(t *testing.T) {
	base, err := ParseSpecifierSet(">=1.0")
	if err != nil {
		t.Fatal(err)
	}
	narrow, err := ParseSpecifierSet("<2.0")
	if err != nil {
		t.Fatal(err)
	}

	combined := base.Intersect(narrow)
	if combined.String() != ">=1.0,<2.0" {
		t.Fatalf("Intersect = %q, want %q", combined.String(), ">=1.0,<2.0")
	}

	for version, want := range map[string]bool{
		"1.0.0": true,
		"1.5":   true,
		"0.9":   false,
		"2.0":   false,
		"2.5":   false,
	} {
		if got := combined.CheckString(version); got != want {
			t.Errorf("[1.0, 2.0).Check(%s) = %v, want %v", version, got, want)
		}
	}
}

func TestSpecifierSetEmpty(t *testing.T) {
	var set SpecifierSet
	if !set.CheckString("42.0") {
		t.Error("empty set must match every version")
	}
	if got := set.Intersect(nil); len(got) != 0 {
		t.Errorf("empty intersect empty = %v, want empty", got)
	}
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		extras []string
		specs  string
		marker string
	}{
		{in: "requests", name: "requests"},
		{in: "requests>=2.0,<3.0", name: "requests", specs: ">=2.0,<3.0"},
		{in: "requests (>=2.0)", name: "requests", specs: ">=2.0"},
		{in: "Werkzeug[watchdog]>=2.0", name: "werkzeug", extras: []string{"watchdog"}, specs: ">=2.0"},
		{
			in:     `colorama>=0.4; platform_system == "Windows"`,
			name:   "colorama",
			specs:  ">=0.4",
			marker: `platform_system == "Windows"`,
		},
		{in: "typing_extensions ~= 4.0", name: "typing-extensions", specs: "~=4.0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dep, err := ParseDependency(tt.in)
			if err != nil {
				t.Fatalf("ParseDependency(%q): %v", tt.in, err)
			}
			if dep.Name != tt.name {
				t.Errorf("Name = %q, want %q", dep.Name, tt.name)
			}
			if !reflect.DeepEqual(dep.Extras, tt.extras) {
				t.Errorf("Extras = %v, want %v", dep.Extras, tt.extras)
			}
			if dep.Specs.String() != tt.specs {
				t.Errorf("Specs = %q, want %q", dep.Specs.String(), tt.specs)
			}
			if dep.Marker != tt.marker {
				t.Errorf("Marker = %q, want %q", dep.Marker, tt.marker)
			}
		})
	}
}
