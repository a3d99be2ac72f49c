// provider_test.go — Unit tests for the CDN provider adapters and facade.
package cdn_test

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/config"
)

func cloudFrontCfg() config.CDNConfig {
	return config.CDNConfig{
		Domain:    "d1abc.cloudfront.net",
		Protocol:  "https",
		VideoPath: "videos",
	}
}

func bunnyCfg(authKey string) config.CDNConfig {
	return config.CDNConfig{
		Domain:          "chartschool.b-cdn.net",
		Protocol:        "https",
		SupportsSigning: true,
		AuthKey:         authKey,
	}
}

func TestCloudFront_VideoURL(t *testing.T) {
	p := cdn.NewCloudFront(cloudFrontCfg())

	tests := []struct {
		name string
		path string
		want string
	}{
		{"bare key", "lessons/1.m3u8", "https://d1abc.cloudfront.net/videos/lessons/1.m3u8"},
		{"leading slash stripped", "/lessons/1.m3u8", "https://d1abc.cloudfront.net/videos/lessons/1.m3u8"},
		{"absolute passthrough", "https://elsewhere.net/a.m3u8", "https://elsewhere.net/a.m3u8"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.VideoURL(tt.path); got != tt.want {
				t.Errorf("VideoURL(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCloudFront_VideoURL_NoVideoPath(t *testing.T) {
	cfg := cloudFrontCfg()
	cfg.VideoPath = ""
	p := cdn.NewCloudFront(cfg)

	got := p.VideoURL("lessons/1.m3u8")
	want := "https://d1abc.cloudfront.net/lessons/1.m3u8"
	if got != want {
		t.Errorf("VideoURL = %q, want %q", got, want)
	}
}

func TestCloudFront_SignedURL_DegradesToUnsigned(t *testing.T) {
	p := cdn.NewCloudFront(cloudFrontCfg())

	signed, err := p.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if signed != p.VideoURL("lessons/1.m3u8") {
		t.Errorf("expected unsigned fallback, got %q", signed)
	}
}

func TestBunnyCDN_SignedURL(t *testing.T) {
	p := cdn.NewBunnyCDN(bunnyCfg("bunny-auth-key"))

	signed, err := p.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("signed URL is not parseable: %v", err)
	}

	token := u.Query().Get("token")
	if token == "" {
		t.Fatal("expected 'token' query param")
	}
	// Token must be unpadded base64url.
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q contains non-base64url characters", token)
	}

	expiresStr := u.Query().Get("expires")
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		t.Fatalf("could not parse expires %q: %v", expiresStr, err)
	}
	min := time.Now().Add(59 * time.Minute).Unix()
	max := time.Now().Add(61 * time.Minute).Unix()
	if expires < min || expires > max {
		t.Errorf("expires %d outside expected one-hour window [%d, %d]", expires, min, max)
	}
}

func TestBunnyCDN_SignedURL_NoAuthKeyFailsOpen(t *testing.T) {
	p := cdn.NewBunnyCDN(bunnyCfg(""))

	signed, err := p.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if strings.Contains(signed, "token=") {
		t.Errorf("expected unsigned URL without auth key, got %q", signed)
	}
	if signed != p.VideoURL("lessons/1.m3u8") {
		t.Errorf("expected unsigned fallback %q, got %q", p.VideoURL("lessons/1.m3u8"), signed)
	}
}

func TestBunnyCDN_SignedURL_Deterministic(t *testing.T) {
	// Two URLs signed with the same expiry must carry the same token.
	p := cdn.NewBunnyCDN(bunnyCfg("bunny-auth-key"))

	a, errA := p.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	b, errB := p.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	if errA != nil || errB != nil {
		t.Fatalf("SignedURL failed: %v / %v", errA, errB)
	}

	ua, _ := url.Parse(a)
	ub, _ := url.Parse(b)
	if ua.Query().Get("expires") == ub.Query().Get("expires") &&
		ua.Query().Get("token") != ub.Query().Get("token") {
		t.Error("same path and expiry produced different tokens")
	}
}

func TestCloudflare_ThumbnailURL(t *testing.T) {
	p := cdn.NewCloudflare(config.CDNConfig{
		Domain:   "customer-abc.cloudflarestream.com",
		Protocol: "https",
	})

	got := p.ThumbnailURL("courses/intro/1.m3u8")
	want := "https://customer-abc.cloudflarestream.com/courses/intro/1/thumbnails/thumbnail.jpg"
	if got != want {
		t.Errorf("ThumbnailURL = %q, want %q", got, want)
	}
}

func TestNewProvider_UnknownDefaultsToCloudFront(t *testing.T) {
	p := cdn.NewProvider(config.CDNProvider("akamai"), cloudFrontCfg())
	if _, ok := p.(*cdn.CloudFront); !ok {
		t.Errorf("expected CloudFront fallback for unknown provider, got %T", p)
	}
}

func TestService_SignedURL_FallsBackWithoutSigning(t *testing.T) {
	cfg := &config.Config{
		Provider:   config.ProviderCloudFront,
		CloudFront: cloudFrontCfg(),
	}
	svc := cdn.NewService(cfg, nil)

	signed, err := svc.SignedURL(context.Background(), "lessons/1.m3u8", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if signed != svc.VideoURL("lessons/1.m3u8") {
		t.Errorf("expected unsigned fallback, got %q", signed)
	}
	if svc.CurrentProvider() != config.ProviderCloudFront {
		t.Errorf("CurrentProvider = %q, want cloudfront", svc.CurrentProvider())
	}
}

func TestService_DelegatesToBunny(t *testing.T) {
	cfg := &config.Config{
		Provider: config.ProviderBunnyCDN,
		Bunny:    bunnyCfg("key"),
	}
	svc := cdn.NewService(cfg, nil)

	if svc.Domain() != "chartschool.b-cdn.net" {
		t.Errorf("Domain = %q", svc.Domain())
	}
	signed, err := svc.SignedURL(context.Background(), "a.m3u8", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if !strings.Contains(signed, "token=") {
		t.Errorf("expected signed URL from bunny provider, got %q", signed)
	}
}
