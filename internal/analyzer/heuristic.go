package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/securescan/internal/interfaces"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/model"
	"github.com/raysh454/securescan/internal/risk"
)

// HeuristicAnalyzer is an offline, rule-driven implementation of the
// Analyzer contract for deployments without provider credentials. It scores
// the URL string itself plus (best-effort) the fetched page body, combining
// rule hits into the same factor breakdown the external provider reports.
// It is deterministic for a fixed page, which also makes it the natural
// in-process backend for integration tests.
type HeuristicAnalyzer struct {
	cfg    *Config
	client *http.Client
	logger logging.Logger
}

// Ensure HeuristicAnalyzer implements the Analyzer contract at compile-time.
var _ interfaces.Analyzer = (*HeuristicAnalyzer)(nil)

// urlRule scores the URL string; contentRule scores the fetched body.
type urlRule struct {
	id        string
	factor    string
	points    float64
	check     string
	finding   string
	recommend string
	match     func(u *url.URL, raw string) bool
}

type contentRule struct {
	id        string
	factor    string
	points    float64
	check     string
	finding   string
	recommend string
	selector  string
	regex     *regexp.Regexp
}

var urlRules = []urlRule{
	{
		id: "url:plain-http", factor: "ssl_validity", points: 60,
		check: "ssl_status", finding: "page served over plain HTTP",
		recommend: "Prefer HTTPS versions of this site",
		match: func(u *url.URL, raw string) bool {
			return u != nil && u.Scheme == "http"
		},
	},
	{
		id: "url:ip-literal-host", factor: "ip_reputation", points: 50,
		check: "ip_reputation", finding: "host is a raw IP address",
		recommend: "Verify why the site is addressed by IP rather than a domain name",
		match: func(u *url.URL, raw string) bool {
			return u != nil && ipv4Regexp.MatchString(u.Hostname())
		},
	},
	{
		id: "url:credential-keywords", factor: "phishing_indicators", points: 40,
		check: "suspicious_keywords", finding: "credential-harvesting keywords in URL",
		recommend: "Treat login prompts on this page with suspicion",
		match: func(u *url.URL, raw string) bool {
			return keywordRegexp.MatchString(strings.ToLower(raw))
		},
	},
	{
		id: "url:punycode-host", factor: "phishing_indicators", points: 60,
		check: "homograph_detection", finding: "punycode-encoded hostname (possible homograph)",
		recommend: "Compare the decoded hostname against the brand it imitates",
		match: func(u *url.URL, raw string) bool {
			return u != nil && strings.Contains(u.Hostname(), "xn--")
		},
	},
	{
		id: "url:userinfo-trick", factor: "phishing_indicators", points: 70,
		check: "phishing_check", finding: "userinfo segment hides the real host",
		recommend: "Do not follow URLs embedding a fake host before @",
		match: func(u *url.URL, raw string) bool {
			return u != nil && u.User != nil
		},
	},
	{
		id: "url:deep-subdomains", factor: "domain_age", points: 30,
		check: "whois_data", finding: "unusually deep subdomain chain",
		recommend: "Check WHOIS registration for the registrable domain",
		match: func(u *url.URL, raw string) bool {
			return u != nil && strings.Count(u.Hostname(), ".") >= 4
		},
	},
}

var contentRules = []contentRule{
	{
		id: "body:password-form", factor: "phishing_indicators", points: 35,
		check: "phishing_check", finding: "page contains a password form",
		recommend: "Confirm the form posts to the same origin",
		selector: `form input[type="password"]`,
	},
	{
		id: "body:hidden-iframe", factor: "redirect_chain", points: 40,
		check: "redirect_analysis", finding: "hidden iframe present",
		recommend: "Inspect iframe targets before trusting the page",
		selector: `iframe[style*="display:none"], iframe[width="0"], iframe[height="0"]`,
	},
	{
		id: "body:meta-refresh", factor: "redirect_chain", points: 50,
		check: "redirect_analysis", finding: "meta-refresh redirect",
		selector: `meta[http-equiv="refresh"]`,
	},
	{
		id: "body:js-obfuscation", factor: "phishing_indicators", points: 30,
		check: "malware_signature", finding: "obfuscated script constructs",
		recommend: "Review inline scripts for decoding of hidden payloads",
		regex: regexp.MustCompile(`(atob\(|String\.fromCharCode|unescape\()`),
	},
	{
		id: "body:eval-usage", factor: "phishing_indicators", points: 25,
		check: "malware_signature", finding: "dynamic code evaluation",
		regex: regexp.MustCompile(`\beval\s*\(`),
	},
}

var (
	ipv4Regexp    = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	keywordRegexp = regexp.MustCompile(`(login|verify|account|secure|update|wallet|banking)`)
)

// checkNames is the fixed set of indicator entries every result carries.
var checkNames = []string{
	"dns_lookup", "whois_data", "ssl_status", "blacklist_check",
	"phishing_check", "redirect_analysis", "malware_signature",
	"ip_reputation", "suspicious_keywords", "homograph_detection",
}

// NewHeuristicAnalyzer constructs the offline analyzer. httpClient may be
// nil; fetching is best-effort and a fetch failure only limits the rules
// that can run.
func NewHeuristicAnalyzer(cfg *Config, logger logging.Logger, httpClient *http.Client) (*HeuristicAnalyzer, error) {
	if logger == nil {
		return nil, errors.New("analyzer: nil logger provided")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	componentLogger := logger.With(logging.Field{Key: "component", Value: "heuristic-analyzer"})
	componentLogger.Info("created heuristic analyzer")

	return &HeuristicAnalyzer{cfg: cfg, client: httpClient, logger: componentLogger}, nil
}

// Analyze scores rawURL against the URL rules and, when the page can be
// fetched, the content rules. It never returns a processing error for an
// unreachable page — unreachability is itself a finding.
func (h *HeuristicAnalyzer) Analyze(ctx context.Context, rawURL string) (*model.AnalysisResult, error) {
	breakdown := map[string]float64{
		"blacklist": 0, "domain_age": 0, "ssl_validity": 0,
		"redirect_chain": 0, "ip_reputation": 0, "phishing_indicators": 0,
	}
	checks := make(map[string]string, len(checkNames))
	var recommendations []string
	var findings []string

	parsed, err := url.Parse(withScheme(rawURL))
	if err != nil {
		parsed = nil
	}

	for _, r := range urlRules {
		if r.match(parsed, rawURL) {
			breakdown[r.factor] += r.points
			appendCheck(checks, r.check, r.finding)
			findings = append(findings, r.finding)
			if r.recommend != "" {
				recommendations = append(recommendations, r.recommend)
			}
		}
	}

	body := h.fetch(ctx, parsed, checks)
	if body != "" {
		doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(body))
		for _, r := range contentRules {
			hit := false
			if r.selector != "" && docErr == nil && doc != nil {
				hit = doc.Find(r.selector).Length() > 0
			}
			if !hit && r.regex != nil {
				hit = r.regex.MatchString(body)
			}
			if hit {
				breakdown[r.factor] += r.points
				appendCheck(checks, r.check, r.finding)
				findings = append(findings, r.finding)
				if r.recommend != "" {
					recommendations = append(recommendations, r.recommend)
				}
			}
		}
	}

	for factor, v := range breakdown {
		breakdown[factor] = math.Min(v, 100)
	}
	for _, name := range checkNames {
		if _, ok := checks[name]; !ok {
			checks[name] = "no findings"
		}
	}

	weighted, err := risk.Weighted(breakdown)
	if err != nil {
		return nil, &ProcessingError{Stage: "validate", Err: err}
	}
	score := int(math.Round(weighted))
	level := risk.LevelForScore(score)

	summary := fmt.Sprintf("Heuristic analysis of %s: %d indicator(s) matched.", rawURL, len(findings))
	if len(findings) == 0 {
		summary = fmt.Sprintf("Heuristic analysis of %s found no risk indicators.", rawURL)
	}

	if recommendations == nil {
		recommendations = []string{}
	}

	return &model.AnalysisResult{
		RiskScore:       score,
		ThreatLevel:     level,
		Breakdown:       breakdown,
		Checks:          checks,
		Recommendations: recommendations,
		Summary:         summary,
	}, nil
}

// fetch retrieves the page body, recording reachability in the checks map.
// Errors are findings, not faults.
func (h *HeuristicAnalyzer) fetch(ctx context.Context, u *url.URL, checks map[string]string) string {
	if u == nil || u.Host == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ""
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("heuristic fetch failed",
			logging.Field{Key: "url", Value: u.String()},
			logging.Field{Key: "error", Value: err.Error()})
		checks["dns_lookup"] = "host unreachable at scan time"
		return ""
	}
	defer resp.Body.Close()

	checks["dns_lookup"] = "host resolved and responded"
	if u.Scheme == "https" {
		checks["ssl_status"] = "TLS handshake completed"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return ""
	}
	return string(body)
}

// Close releases resources (currently a no-op) and logs lifecycle.
func (h *HeuristicAnalyzer) Close() error {
	h.logger.Info("closing heuristic analyzer")
	return nil
}

func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

func appendCheck(checks map[string]string, name, finding string) {
	if prev, ok := checks[name]; ok && prev != "" {
		checks[name] = prev + "; " + finding
		return
	}
	checks[name] = finding
}
