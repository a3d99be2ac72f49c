// resolver_test.go — Proxy decision table and idempotence tests.
package video_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/config"
	"github.com/chartschool/platform/internal/video"
)

func testConfig(env config.Environment, deployHost string) *config.Config {
	return &config.Config{
		Environment: env,
		Provider:    config.ProviderCloudFront,
		CloudFront: config.CDNConfig{
			Domain:    "d1abc.cloudfront.net",
			Protocol:  "https",
			VideoPath: "videos",
		},
		ProxyPath:      "/api/video-proxy",
		ForceProxyHost: "app.chartschool.dev",
		DirectHost:     "chartschool.io",
		CORSSafePrefix: "public/",
		DeployHost:     deployHost,
	}
}

func newResolver(cfg *config.Config) *video.Resolver {
	return video.NewResolver(cdn.NewService(cfg, nil), cfg, nil)
}

func boolPtr(b bool) *bool { return &b }

func TestResolve_EmptyInput(t *testing.T) {
	r := newResolver(testConfig(config.EnvDevelopment, "localhost"))
	if got := r.Resolve("", video.Options{}); got != "" {
		t.Errorf("Resolve(\"\") = %q, want empty", got)
	}
	if got := r.Resolve("   ", video.Options{}); got != "" {
		t.Errorf("Resolve(whitespace) = %q, want empty", got)
	}
}

func TestResolve_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		env        config.Environment
		deployHost string
		raw        string
		opts       video.Options
		wantProxy  bool
	}{
		{"dev default proxies", config.EnvDevelopment, "localhost", "lessons/1.m3u8", video.Options{}, true},
		{"production direct", config.EnvProduction, "edge.internal", "lessons/1.m3u8", video.Options{}, false},
		{"forced proxy host wins over production env", config.EnvProduction, "app.chartschool.dev", "lessons/1.m3u8", video.Options{}, true},
		{"direct host never proxies", config.EnvDevelopment, "chartschool.io", "lessons/1.m3u8", video.Options{}, false},
		{"cors-safe prefix skips proxy", config.EnvDevelopment, "localhost", "public/promo.mp4", video.Options{}, false},
		{"force direct beats forced host", config.EnvDevelopment, "app.chartschool.dev", "lessons/1.m3u8", video.Options{ForceDirect: true}, false},
		{"use-proxy false beats forced host", config.EnvDevelopment, "app.chartschool.dev", "lessons/1.m3u8", video.Options{UseProxy: boolPtr(false)}, false},
		{"use-proxy true beats direct host", config.EnvProduction, "chartschool.io", "lessons/1.m3u8", video.Options{UseProxy: boolPtr(true)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(testConfig(tt.env, tt.deployHost))
			got := r.Resolve(tt.raw, tt.opts)

			isProxy := strings.HasPrefix(got, "/api/video-proxy?url=")
			if isProxy != tt.wantProxy {
				t.Fatalf("Resolve(%q) = %q, wantProxy=%v", tt.raw, got, tt.wantProxy)
			}

			if tt.wantProxy {
				u, err := url.Parse(got)
				if err != nil {
					t.Fatalf("proxy URL not parseable: %v", err)
				}
				inner := u.Query().Get("url")
				if !strings.HasPrefix(inner, "https://d1abc.cloudfront.net/videos/") {
					t.Errorf("wrapped URL = %q, want CDN-qualified", inner)
				}
			} else if !strings.HasPrefix(got, "https://d1abc.cloudfront.net/videos/") {
				t.Errorf("direct URL = %q, want CDN-qualified", got)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	inputs := []string{
		"lessons/1.m3u8",
		"public/promo.mp4",
		"https://d1abc.cloudfront.net/videos/lessons/1.m3u8",
		"/api/video-proxy?url=https%3A%2F%2Fd1abc.cloudfront.net%2Fvideos%2Flessons%2F1.m3u8",
	}
	for _, env := range []config.Environment{config.EnvDevelopment, config.EnvProduction} {
		r := newResolver(testConfig(env, "localhost"))
		for _, in := range inputs {
			once := r.Resolve(in, video.Options{})
			twice := r.Resolve(once, video.Options{})
			if once != twice {
				t.Errorf("env=%s resolve not idempotent for %q: %q != %q", env, in, once, twice)
			}
		}
	}
}

func TestResolve_ProxiedInputUnchanged(t *testing.T) {
	r := newResolver(testConfig(config.EnvDevelopment, "localhost"))
	in := "/api/video-proxy?url=https%3A%2F%2Fd1abc.cloudfront.net%2Fvideos%2Fa.m3u8"
	if got := r.Resolve(in, video.Options{}); got != in {
		t.Errorf("already-proxied input changed: %q → %q", in, got)
	}
}
