// attack_test.go — adversarial input tests.
// Every validator is exercised against classic attack payloads.
// All must return a ValidationError — never panic, never pass.
package validate_test

import (
	"strings"
	"testing"

	"github.com/chartschool/platform/internal/validate"
)

// TestPathTraversalAgainstAttacks verifies NoPathTraversal catches traversal sequences.
func TestPathTraversalAgainstAttacks(t *testing.T) {
	traversalCases := []string{
		"../../../etc/passwd",
		"..%2F..%2Fetc%2Fpasswd",
		"..%252F..%252Fetc%252Fpasswd",
		"hello\x00world",
		"\x00admin",
		"admin\x00",
		"sub/../../secret",
		"./././../secret",
		`..\..\..\\windows\\system32`,
	}
	for _, v := range traversalCases {
		err := validate.NoPathTraversal("path", v)
		if err == nil {
			t.Errorf("NoPathTraversal accepted traversal payload %q", v)
		}
	}
}

// TestURLSSRFPayloads verifies IsURL blocks SSRF-capable URLs.
func TestURLSSRFPayloads(t *testing.T) {
	ssrfCases := []string{
		"http://127.0.0.1/admin",
		"http://localhost/secret",
		"http://::1/admin",
		"http://10.0.0.1/internal",
		"http://172.16.0.1/metadata",
		"http://192.168.1.1/router",
		"javascript:alert(1)",
		"file:///etc/passwd",
		"data:text/html,<script>alert(1)</script>",
		"ftp://evil.com/file",
	}
	for _, v := range ssrfCases {
		err := validate.IsURL("url", v, false)
		if err == nil {
			t.Errorf("IsURL accepted SSRF payload %q", v)
		}
	}
}

// TestMaxLengthLargeInputs verifies MaxLength handles 10k+ char strings without panicking.
func TestMaxLengthLargeInputs(t *testing.T) {
	huge := strings.Repeat("x", 10000)
	err := validate.MaxLength("field", huge, 100)
	if err == nil {
		t.Error("MaxLength should reject 10k-char string with max=100")
	}

	// Verify it does not panic on even larger inputs.
	enormous := strings.Repeat("A", 100000)
	_ = validate.MaxLength("field", enormous, 200)
}

// TestNoNilPanic verifies no validator panics on empty or zero-value inputs.
func TestNoNilPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("validator panicked: %v", r)
		}
	}()

	_ = validate.NonEmptyString("f", "")
	_ = validate.MaxLength("f", "", 10)
	_ = validate.IsURL("f", "", false)
	_ = validate.IsLanguageCode("f", "")
	_ = validate.IntInRange("f", 0, 1, 10)
	_ = validate.NoPathTraversal("f", "")
}

// TestLanguageCodeValid verifies valid language codes pass.
func TestLanguageCodeValid(t *testing.T) {
	valid := []string{"en", "fr", "de", "en-US", "zh-CN", "ara"}
	for _, v := range valid {
		if err := validate.IsLanguageCode("lang", v); err != nil {
			t.Errorf("IsLanguageCode rejected valid code %q: %v", v, err)
		}
	}
}

// TestLanguageCodeInvalid verifies invalid language codes fail.
func TestLanguageCodeInvalid(t *testing.T) {
	invalid := []string{"EN", "e", "' OR 1=1", "", "en_US", "verylonglanguagecode"}
	for _, v := range invalid {
		if err := validate.IsLanguageCode("lang", v); err == nil {
			t.Errorf("IsLanguageCode accepted invalid code %q", v)
		}
	}
}
