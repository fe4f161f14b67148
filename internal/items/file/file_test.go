package file

import (
	"context"
	"crypto/sha1" //nolint:gosec // matches production hash choice
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashmap-kz/metanode/internal/transport"
)

func TestValidateMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{"three digit", "644", false},
		{"four digit", "0644", false},
		{"too short", "64", true},
		{"too long", "12345", true},
		{"out of range digit", "648", true},
		{"negative", "-64", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMode("file:x", tt.mode)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type fakeRunner struct {
	responses map[string]*transport.Result
	sudoCmds  []string
}

func (f *fakeRunner) Run(_ context.Context, command string, sudo bool) (*transport.Result, error) {
	if sudo {
		f.sudoCmds = append(f.sudoCmds, command)
	}
	if res, ok := f.responses[command]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("fakeRunner: unexpected command %q", command)
}

func hashOf(content []byte) string {
	sum := sha1.Sum(content) //nolint:gosec
	return fmt.Sprintf("%x", sum)
}

func TestApplyNoOpWhenAlreadyCorrect(t *testing.T) {
	content := []byte("hello\n")
	runner := &fakeRunner{responses: map[string]*transport.Result{
		"stat --printf '%U:%G:%a' '/etc/motd'": {Stdout: []byte("root:root:664")},
		"sha1sum '/etc/motd'":                  {Stdout: []byte(hashOf(content) + "  /etc/motd\n")},
	}}

	it, err := New("/etc/motd", Attributes{Content: content}, nil, nil, DefaultValidators(nil), runner)
	require.NoError(t, err)

	before, after, err := it.Apply(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, before.Correct)
	assert.True(t, after.Correct)
	assert.Empty(t, runner.sudoCmds)
}

func TestApplyFixesDrift(t *testing.T) {
	content := []byte("hello\n")
	wantHash := hashOf(content)
	runner := &fakeRunner{responses: map[string]*transport.Result{
		"stat --printf '%U:%G:%a' '/etc/motd'": {Stdout: []byte("nobody:nobody:600")},
		"sha1sum '/etc/motd'":                  {Stdout: []byte("deadbeef  /etc/motd\n")},
	}}
	// fix() must issue this sudo install; the fake stat/sha1sum answers
	// never change, so only the before status is checked.
	runner.responses["install -o 'root' -g 'root' -m '0664' /dev/stdin '/etc/motd' <<< 'hello\n'"] = &transport.Result{}

	it, err := New("/etc/motd", Attributes{Content: content}, nil, nil, DefaultValidators(nil), runner)
	require.NoError(t, err)

	before, _, err := it.Apply(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, before.Correct)
	assert.NotEmpty(t, runner.sudoCmds)
	_ = wantHash
}

func TestNewRejectsInvalidMode(t *testing.T) {
	_, err := New("/etc/motd", Attributes{Mode: "999"}, nil, nil, DefaultValidators(nil), &fakeRunner{})
	assert.Error(t, err)
}

func TestNewRejectsUnknownContentType(t *testing.T) {
	processors := map[string]ContentProcessor{"text": func(Attributes) ([]byte, error) { return nil, nil }}
	_, err := New("/etc/motd", Attributes{ContentType: "jinja2"}, nil, processors, DefaultValidators(processors), &fakeRunner{})
	assert.Error(t, err)
}

func TestIDIncludesTypePrefix(t *testing.T) {
	it, err := New("/etc/motd", Attributes{}, nil, nil, DefaultValidators(nil), &fakeRunner{})
	require.NoError(t, err)
	assert.Equal(t, "file:/etc/motd", it.ID())
}
