package pdftext

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-qa-api/pkg/errors"
)

type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantPages int
		wantText  string
	}{
		{"two pages", "page one\fpage two\f", 2, "page one\npage two"},
		{"no form feed", "single page", 1, "single page"},
		{"empty", "", 0, ""},
		{"blank pages", "\f\f", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.out)
			assert.Equal(t, tt.wantPages, res.NumPages)
			assert.Equal(t, tt.wantText, res.Text)
		})
	}
}

func TestExtract_UsesLayoutToStdout(t *testing.T) {
	runner := &mockRunner{output: []byte("Manual\n\nInstall the widget.\f")}
	e := NewWithRunner("", runner)

	res, err := e.Extract(context.Background(), strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBinary, runner.name)
	require.Len(t, runner.args, 5)
	assert.Equal(t, "-layout", runner.args[0])
	assert.Equal(t, "-", runner.args[4])
	assert.Equal(t, 1, res.NumPages)
	assert.Contains(t, res.Text, "Install the widget.")
}

func TestExtract_EmptyTextIsInvalidInput(t *testing.T) {
	e := NewWithRunner("", &mockRunner{output: []byte("  \f \f")})

	_, err := e.Extract(context.Background(), strings.NewReader("%PDF"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidParam)
	assert.Contains(t, errors.AsAppError(err).Detail, "could not extract text from PDF")
}

func TestExtract_RunnerError(t *testing.T) {
	e := NewWithRunner("", &mockRunner{err: stderrors.New("syntax error")})

	_, err := e.Extract(context.Background(), strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, errors.ErrExtractionFailed)
	assert.Contains(t, err.Error(), "pdftotext failed")
}
