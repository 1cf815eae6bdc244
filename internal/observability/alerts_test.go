package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var metricRef = regexp.MustCompile(`userboard_[a-z_]+`)

func loadUserboardRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "userboard.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, group := range file.Groups {
		if group.Name == "userboard" {
			return group.Rules
		}
	}
	t.Fatal("userboard alert group missing")
	return nil
}

// registeredNames returns the metric family names the application exports.
func registeredNames(t *testing.T) map[string]bool {
	t.Helper()
	metrics := NewMetrics()
	metrics.ObserveFetch(FetchFailed, time.Millisecond)
	metrics.StaleResult()
	metrics.requestsTotal.WithLabelValues("/", "200").Inc()
	metrics.requestDuration.WithLabelValues("/").Observe(0)

	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	return names
}

func TestUserboardAlertRules(t *testing.T) {
	rules := loadUserboardRules(t)
	expected := map[string]string{
		"DirectoryFetchFailures": "critical",
		"DirectoryHighLatency":   "warning",
		"StaleResultSpike":       "warning",
	}
	require.Len(t, rules, len(expected))

	for _, rule := range rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		_, err := time.ParseDuration(rule.For)
		assert.NoError(t, err, rule.Alert)
	}
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	names := registeredNames(t)
	for _, rule := range loadUserboardRules(t) {
		refs := metricRef.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, refs, "rule %s queries no userboard metric", rule.Alert)
		for _, ref := range refs {
			family := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(ref, "_bucket"), "_sum"), "_count")
			assert.True(t, names[family], "rule %s references unknown metric %s", rule.Alert, ref)
		}
	}
}

func TestAlertRunbooksExist(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)
	runbook := string(data)

	for _, rule := range loadUserboardRules(t) {
		link := rule.Annotations["runbook"]
		require.True(t, strings.HasPrefix(link, "docs/runbook.md#"), "rule %s runbook %q", rule.Alert, link)
		anchor := strings.TrimPrefix(link, "docs/runbook.md#")
		assert.Contains(t, runbook, "## "+anchor, rule.Alert)
	}
}
