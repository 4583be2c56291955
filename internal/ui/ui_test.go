package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndIcon(t *testing.T) {
	assert.Equal(t, "Embedding", StageEmbedding.String())
	assert.Equal(t, "WRITE", StageWriting.Icon())
	assert.Equal(t, "Unknown", Stage(42).String())
	assert.Equal(t, "???", Stage(42).Icon())
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	// Given: output to a buffer
	buf := &bytes.Buffer{}

	// When: creating a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: plain renderer is used
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestNewRenderer_NoColorIsPlain(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithNoColor(true)))
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.True(t, DetectNoColor())
}

func TestIsTTY_Nil(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{
		Stage:       StageChunking,
		Current:     5,
		Total:       12,
		CurrentFile: "src/search.cpp",
	})

	// Then: output is correctly formatted
	assert.Equal(t, "[CHUNK] 5/12 - src/search.cpp\n", buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	for _, stage := range []Stage{StageScanning, StageChunking, StageEmbedding, StageIndexing, StageWriting} {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 1, Total: 2, Message: "working"})
	}
	r.Complete(CompletionStats{Files: 1, Chunks: 2, Stages: StageTimings{Scan: time.Millisecond}})

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_QuietSuppressesProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf, WithQuiet(true)))

	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 1, Total: 2})
	r.Complete(CompletionStats{Files: 3, Chunks: 9, Duration: time.Second})

	assert.Equal(t, "Complete: 3 files, 9 chunks indexed in 1s\n", buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{File: "src/nnue/x.bin.h", Err: errors.New("binary"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN: src/nnue/x.bin.h: binary", lines[0])
	assert.Equal(t, "ERROR: boom", lines[1])
	assert.Len(t, r.Errors(), 2)
}

func TestPlainRenderer_Complete_ShowsArtifacts(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf, WithProjectDir("Stockfish/src")))
	require.NoError(t, r.Start(context.Background()))

	r.Complete(CompletionStats{
		Files:        2,
		Chunks:       10,
		Warnings:     1,
		Stages:       StageTimings{Scan: time.Millisecond, Embed: time.Second},
		Embedder:     EmbedderInfo{Backend: "static", Model: "static", Dimensions: 256},
		IndexPath:    "corpus.index",
		MetadataPath: "corpus_docs.json",
	})

	out := buf.String()
	assert.Contains(t, out, "Indexing Stockfish/src")
	assert.Contains(t, out, "(0 errors, 1 warnings)")
	assert.Contains(t, out, "10 chunks @ 10.0/sec")
	assert.Contains(t, out, "Backend: static (static, 256 dims)")
	assert.Contains(t, out, "Metadata: corpus_docs.json")
}

func TestStatusRenderer_Render(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{
		IndexPath: "corpus.index",
		Status:    "inconsistent",
		Issues:    []string{"3 records for 4 vectors"},
		Vectors:   4,
		Records:   3,
		IndexKind: "flat",
		Metric:    "l2",
		IndexSize: 2048,
	}))

	out := buf.String()
	assert.Contains(t, out, "Corpus: corpus.index")
	assert.Contains(t, out, "inconsistent")
	assert.Contains(t, out, "- 3 records for 4 vectors")
	assert.Contains(t, out, "flat (l2)")
	assert.Contains(t, out, "2.0 KB")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(StatusInfo{Vectors: 1, Records: 1, Status: "consistent"}))
	assert.Contains(t, buf.String(), `"status": "consistent"`)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
}
