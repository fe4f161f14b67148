// Package file is the one illustrative item implementation in this
// repo: the "file" item type spec.md §6 cites for its mode-validator
// example, ported from original_source/src/blockwart/items/files.go
// -- in the original, items/files.py. It is not imported by the core
// scheduler/graph/pool packages; it exists to exercise the item.Item
// contract end-to-end and to demonstrate the registry-not-globals
// pattern spec.md's design notes call for.
package file

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-change detection, not a security boundary
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/transport"
)

// ContentProcessor renders the desired byte content for an item given
// its attributes. Registries are passed in by the caller
// (applyrun.Node.LoadBundles) rather than kept as package-level mutable state, per
// spec.md's design notes on avoiding global registries.
type ContentProcessor func(attrs Attributes) ([]byte, error)

var modePattern = regexp.MustCompile(`^[0-7]{3,4}$`)

// AttributeValidators maps an attribute name to a function asserting
// it is well-formed; unlisted attributes are accepted unconditionally,
// mirroring files.py's ATTRIBUTE_VALIDATORS defaultdict.
type AttributeValidators map[string]func(itemID, value string) error

// DefaultValidators returns the mode and content-type validators
// files.py ships, suitable for passing to New.
func DefaultValidators(processors map[string]ContentProcessor) AttributeValidators {
	return AttributeValidators{
		"mode": ValidateMode,
		"content_type": func(itemID, value string) error {
			if value == "binary" {
				// rendered by the item itself, no processor needed
				return nil
			}
			if _, ok := processors[value]; !ok {
				return fmt.Errorf("invalid content_type for %s: %q", itemID, value)
			}
			return nil
		},
	}
}

// ValidateMode enforces spec.md §6's mode grammar: three or four
// digits, each in 0..7.
func ValidateMode(itemID, value string) error {
	if !modePattern.MatchString(value) {
		return fmt.Errorf("invalid mode for %s: %q", itemID, value)
	}
	return nil
}

// Attributes are the user-facing, declarative fields of a file item,
// mirroring files.py's ITEM_ATTRIBUTES defaults.
type Attributes struct {
	Content     []byte
	ContentType string
	Owner       string
	Group       string
	Mode        string
	Source      string
}

func defaultAttributes() Attributes {
	return Attributes{
		ContentType: "binary",
		Owner:       "root",
		Group:       "root",
		Mode:        "0664",
	}
}

// Item is a single managed file on a remote host.
type Item struct {
	name       string
	deps       []string
	attrs      Attributes
	processors map[string]ContentProcessor
	validators AttributeValidators
	runner     transport.Runner
}

// New validates attrs against validators and returns a file Item named
// name (its id is "file:name"). deps become the item's user_deps.
func New(
	name string,
	attrs Attributes,
	deps []string,
	processors map[string]ContentProcessor,
	validators AttributeValidators,
	runner transport.Runner,
) (*Item, error) {
	merged := defaultAttributes()
	if attrs.ContentType != "" {
		merged.ContentType = attrs.ContentType
	}
	if attrs.Owner != "" {
		merged.Owner = attrs.Owner
	}
	if attrs.Group != "" {
		merged.Group = attrs.Group
	}
	if attrs.Mode != "" {
		merged.Mode = attrs.Mode
	}
	merged.Content = attrs.Content
	merged.Source = attrs.Source

	id := "file:" + name
	if v, ok := validators["mode"]; ok {
		if err := v(id, merged.Mode); err != nil {
			return nil, err
		}
	}
	if v, ok := validators["content_type"]; ok {
		if err := v(id, merged.ContentType); err != nil {
			return nil, err
		}
	}

	return &Item{
		name:       name,
		deps:       deps,
		attrs:      merged,
		processors: processors,
		validators: validators,
		runner:     runner,
	}, nil
}

// ID implements item.Item.
func (i *Item) ID() string { return "file:" + i.name }

// StaticDeps implements item.Item. Files have no built-in dependencies.
func (i *Item) StaticDeps() []string { return nil }

// UserDeps implements item.Item.
func (i *Item) UserDeps() []string { return i.deps }

type remoteStat struct {
	owner, group, mode string
}

// stat shells out to `stat` and parses owner:group:mode, the same
// format node.py's stat() helper parsed.
func (i *Item) stat(ctx context.Context) (*remoteStat, error) {
	res, err := i.runner.Run(ctx, "stat --printf '%U:%G:%a' "+transport.ShellQuote(i.path()), false)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(res.Stdout), ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("file: unexpected stat output for %s: %q", i.path(), res.Stdout)
	}
	mode := parts[2]
	for len(mode) < 4 {
		mode = "0" + mode
	}
	return &remoteStat{owner: parts[0], group: parts[1], mode: mode}, nil
}

func (i *Item) remoteHash(ctx context.Context) (string, error) {
	res, err := i.runner.Run(ctx, "sha1sum "+transport.ShellQuote(i.path()), false)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(res.Stdout))
	if len(fields) == 0 {
		return "", fmt.Errorf("file: unexpected sha1sum output for %s", i.path())
	}
	return fields[0], nil
}

func (i *Item) path() string { return i.name }

func (i *Item) contentHash() (string, error) {
	content, err := i.render()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(content)
	return fmt.Sprintf("%x", sum), nil
}

func (i *Item) render() ([]byte, error) {
	if i.attrs.ContentType == "binary" {
		return i.attrs.Content, nil
	}
	proc, ok := i.processors[i.attrs.ContentType]
	if !ok {
		return nil, fmt.Errorf("file: no content processor registered for %q", i.attrs.ContentType)
	}
	return proc(i.attrs)
}

// getStatus fetches the remote stat() and content hash concurrently
// over the same connection (one goroutine per round trip via
// errgroup), then compares against the desired attributes.
func (i *Item) getStatus(ctx context.Context) (*item.Status, error) {
	var st *remoteStat
	var remoteSum string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := i.stat(gctx)
		st = s
		return err
	})
	g.Go(func() error {
		sum, err := i.remoteHash(gctx)
		remoteSum = sum
		return err
	})
	if err := g.Wait(); err != nil {
		return &item.Status{Correct: false, Fixable: true, Info: map[string]any{"error": err.Error()}}, nil
	}

	wantSum, err := i.contentHash()
	if err != nil {
		return &item.Status{Correct: false, Fixable: false, Info: map[string]any{"error": err.Error()}}, nil
	}

	correct := st.owner == i.attrs.Owner &&
		st.group == i.attrs.Group &&
		st.mode == normalizeMode(i.attrs.Mode) &&
		remoteSum == wantSum

	return &item.Status{
		Correct: correct,
		Fixable: true,
		Info: map[string]any{
			"owner": st.owner, "group": st.group, "mode": st.mode,
			"content_hash": remoteSum, "want_hash": wantSum,
		},
	}, nil
}

func normalizeMode(mode string) string {
	for len(mode) < 4 {
		mode = "0" + mode
	}
	return mode
}

// fix pushes the desired content/owner/group/mode to the remote host.
func (i *Item) fix(ctx context.Context) error {
	content, err := i.render()
	if err != nil {
		return err
	}
	// feed the content to install's stdin as a here-string; owner,
	// group, mode, path and the payload are all shell-quoted.
	cmd := fmt.Sprintf(
		"install -o %s -g %s -m %s /dev/stdin %s",
		transport.ShellQuote(i.attrs.Owner),
		transport.ShellQuote(i.attrs.Group),
		transport.ShellQuote(i.attrs.Mode),
		transport.ShellQuote(i.path()),
	)
	_, err = i.runner.Run(ctx, cmd+" <<< "+transport.ShellQuote(string(content)), true)
	return err
}

// Apply implements item.Item.
func (i *Item) Apply(ctx context.Context, _ bool) (before, after *item.Status, err error) {
	before, err = i.getStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	if before.Correct {
		return before, before, nil
	}
	if fixErr := i.fix(ctx); fixErr != nil {
		return before, &item.Status{Correct: false, Fixable: true, Info: map[string]any{"error": fixErr.Error()}}, nil
	}
	after, err = i.getStatus(ctx)
	if err != nil {
		return before, nil, err
	}
	return before, after, nil
}
