package buildinfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBuildData(t *testing.T) {
	prev := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = prev })

	var buf bytes.Buffer
	PrintBuildData(&buf)

	assert.Equal(t, "Build version: v1.2.3\nBuild date: N/A\nBuild commit: N/A\n", buf.String())
	assert.Equal(t, "gophnotes-cli/v1.2.3", UserAgent("gophnotes-cli"))
	assert.Equal(t, "v1.2.3", Version())
}
