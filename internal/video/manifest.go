// manifest.go — HLS manifest rewriting.
//
// A manifest is processed line by line. Comment/tag lines pass through
// verbatim unless they carry a URI="..." attribute (#EXT-X-KEY, #EXT-X-MAP,
// #EXT-X-MEDIA, ...), in which case only the quoted value is rewritten.
// Bare reference lines (segments and nested playlists, recognized by
// extension) are made absolute against the manifest's own URL and then run
// through the same proxy decision as any other video reference. Every other
// line passes through untouched. The output always has the same number of
// lines as the input, in the same order.
package video

import (
	"regexp"
	"strings"
)

// mediaRefRE matches segment and playlist reference lines by extension,
// optionally followed by a query string or fragment.
var mediaRefRE = regexp.MustCompile(`(?i)\.(ts|m3u8|m3u|mp4|webm)([?#].*)?$`)

// RewriteManifest rewrites every segment, nested playlist, and URI attribute
// in an HLS manifest so it resolves through the gateway's URL policy.
// manifestURL is the absolute URL the manifest itself was fetched from.
func (r *Resolver) RewriteManifest(content, manifestURL string, opts Options) string {
	lines := strings.Split(content, "\n")
	out := make([]string, len(lines))

	for i, line := range lines {
		out[i] = r.rewriteLine(line, manifestURL, opts)
	}

	return strings.Join(out, "\n")
}

// rewriteLine applies the rewrite policy to a single manifest line.
func (r *Resolver) rewriteLine(line, manifestURL string, opts Options) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line
	}

	if strings.HasPrefix(trimmed, "#") {
		if strings.Contains(trimmed, `URI="`) {
			return r.rewriteURIAttribute(line, manifestURL, opts)
		}
		return line
	}

	if !mediaRefRE.MatchString(trimmed) {
		return line
	}

	return r.resolveRef(trimmed, manifestURL, opts)
}

// rewriteURIAttribute rewrites the quoted value of a URI="..." attribute,
// preserving the rest of the tag byte for byte.
func (r *Resolver) rewriteURIAttribute(line, manifestURL string, opts Options) string {
	start := strings.Index(line, `URI="`)
	if start == -1 {
		return line
	}
	start += len(`URI="`)

	end := strings.Index(line[start:], `"`)
	if end == -1 {
		return line
	}

	uri := line[start : start+end]
	return line[:start] + r.resolveRef(uri, manifestURL, opts) + line[start+end:]
}

// resolveRef makes a manifest reference absolute against the manifest URL
// and applies the proxy decision.
func (r *Resolver) resolveRef(ref, manifestURL string, opts Options) string {
	abs := MakeAbsoluteURL(ref, manifestURL)
	if !strings.HasPrefix(abs, "http://") && !strings.HasPrefix(abs, "https://") {
		// Resolution failed — keep the original reference rather than
		// producing a proxy URL that points nowhere.
		if r.log != nil {
			r.log.WithField("ref", ref).Debug("manifest reference could not be made absolute")
		}
		return ref
	}
	if r.IsProxied(abs) {
		return abs
	}
	if r.shouldUseProxy(abs, opts) {
		return r.ProxyURL(abs)
	}
	return abs
}
