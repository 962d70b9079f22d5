package email

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := map[string]string{
		"asha.k@example.com":      "a***@example.com",
		"j@example.com":           "j***@example.com",
		"applicant@college.ac.in": "a***@college.ac.in",
		"":                        "",
		"not-an-address":          "***",
		"@example.com":            "***@example.com",
	}

	for input, want := range tests {
		if got := RedactEmail(input); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", input, got, want)
		}
	}
}
