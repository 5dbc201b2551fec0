package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("subs", "dQw4w9WgXcQ.jp.srt"), ExportPath("subs", "dQw4w9WgXcQ", "jp"))
	assert.Equal(t, filepath.Join("subs", "a_b.en.srt"), ExportPath("subs", "a/b", "en"))
	assert.Equal(t, "transcript.zh.srt", ExportPath("", "", "zh"))
}
