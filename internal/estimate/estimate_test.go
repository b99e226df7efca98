package estimate

import "testing"

func TestNormalizeService(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"lawn", "lawn"},
		{"  Grass   Cut ", "lawn"},
		{"Hole in wall", "drywall repair"},
		{"drywall repair", "drywall repair"},
		{"hang tv", "tv mount"},
		{"roof replacement", ServiceOther},
		{"", ServiceOther},
	}
	for _, c := range cases {
		if got := NormalizeService(c.in); got != c.want {
			t.Errorf("NormalizeService(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSize(t *testing.T) {
	cases := map[string]string{"Minor": SizeSmall, "m": SizeMedium, "BIG": SizeLarge, "huge": "", "": ""}
	for in, want := range cases {
		if got := NormalizeSize(in); got != want {
			t.Errorf("NormalizeSize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPriceRange(t *testing.T) {
	cases := []struct {
		service, size, want string
	}{
		{"drywall repair", SizeLarge, "$650–$1,400"},
		{"drywall repair", "", "$150–$1,400"},
		{"lawn", SizeLarge, "$60–$150"},
		{ServiceOther, SizeSmall, "$100–$300"},
	}
	for _, c := range cases {
		if got := PriceRange(c.service, c.size); got != c.want {
			t.Errorf("PriceRange(%q, %q) = %q, want %q", c.service, c.size, got, c.want)
		}
	}
}

func TestEstimate(t *testing.T) {
	res := Estimate(Request{Service: "sheetrock repair", Size: "small", Details: "doorknob hole"})
	if res.ServiceMatched != "drywall repair" || res.Size != SizeSmall || res.EstimatedRange != "$150–$300" {
		t.Errorf("unexpected estimate %+v", res)
	}
	if res.NotesReceived != "doorknob hole" || res.Disclaimer != Disclaimer {
		t.Errorf("unexpected passthrough fields %+v", res)
	}

	res = Estimate(Request{Service: "mowing"})
	if res.Size != SizeUnspecified || res.EstimatedRange != "$60–$150" {
		t.Errorf("unexpected estimate %+v", res)
	}
}
