package matchers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
	"github.com/paketo-buildpacks/packit/v2/matchers"
)

// MatchConfigContent compares two configuration files semantically. YAML is
// used for .yml and .yaml files, TOML for everything else.
func MatchConfigContent(expectedFilePath string) types.GomegaMatcher {
	return &matchConfigContentMatcher{
		expectedFilePath: expectedFilePath,
	}
}

type matchConfigContentMatcher struct {
	expectedFilePath string
}

func (m matchConfigContentMatcher) Match(actual interface{}) (bool, error) {
	actualFilePath, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("MatchConfigContent matcher expects a file path")
	}

	actualContents, err := os.ReadFile(actualFilePath)
	if err != nil {
		return false, err
	}

	expectedContents, err := os.ReadFile(m.expectedFilePath)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(filepath.Ext(m.expectedFilePath)) {
	case ".yml", ".yaml":
		return gomega.MatchYAML(expectedContents).Match(actualContents)
	default:
		return matchers.MatchTOML(expectedContents).Match(actualContents)
	}
}

func (m matchConfigContentMatcher) FailureMessage(actual interface{}) string {
	return fmt.Sprintf("Expected\n%s contents\nto match the contents of \n%s", actual, m.expectedFilePath)
}

func (m matchConfigContentMatcher) NegatedFailureMessage(actual interface{}) string {
	return fmt.Sprintf("Expected\n%s contents\n not to match the contents of \n%s", actual, m.expectedFilePath)
}
