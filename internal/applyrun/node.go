// Package applyrun assembles the pieces of one apply invocation against
// a single node: it dials the remote host, resolves bundles into
// item.Item values, runs the scheduler, and aggregates the outcome.
// It plays the role node.py's Node class did in the original
// implementation, minus the parts (node groups, repo-wide concerns)
// that live in internal/repo instead.
package applyrun

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/hashmap-kz/metanode/internal/aggregate"
	"github.com/hashmap-kz/metanode/internal/clog"
	"github.com/hashmap-kz/metanode/internal/graph"
	"github.com/hashmap-kz/metanode/internal/item"
	"github.com/hashmap-kz/metanode/internal/items/file"
	"github.com/hashmap-kz/metanode/internal/metastack"
	"github.com/hashmap-kz/metanode/internal/repo"
	"github.com/hashmap-kz/metanode/internal/scheduler"
	"github.com/hashmap-kz/metanode/internal/transport"
)

// Node is a single remote host plus everything needed to apply its
// configuration: connection details, its composed metadata, and its
// resolved item set.
type Node struct {
	Name     string
	Hostname string
	Port     int

	runner transport.Runner
	stack  *metastack.Metastack
	items  []item.Item
}

// Dial opens the SSH connection for cfg and returns a Node ready to
// load bundles, identified by cfg.Name for logging.
func Dial(ctx context.Context, cfg *repo.NodeConfig, sshConfig *ssh.ClientConfig) (*Node, error) {
	addr := net.JoinHostPort(cfg.Hostname, strconv.Itoa(cfg.Port))
	runner, err := transport.Dial(ctx, addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("applyrun: dial %s: %w", cfg.Name, err)
	}
	return &Node{
		Name:     cfg.Name,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		runner:   runner,
		stack:    metastack.New(),
	}, nil
}

// Close releases the node's transport connection.
func (n *Node) Close() error {
	if closer, ok := n.runner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// LoadBundles composes bundleDir's metadata layers into the node's
// stack and resolves every bundle cfg references into concrete items.
// processors and validators are the file item's injected registries.
// A nil validators falls back to file.DefaultValidators(processors); a
// nil processors registry is kept as is, leaving only the built-in
// "binary" content type usable.
func (n *Node) LoadBundles(
	bundleDir string,
	cfg *repo.NodeConfig,
	processors map[string]file.ContentProcessor,
	validators file.AttributeValidators,
) error {
	if err := repo.LoadLayers(bundleDir, n.stack); err != nil {
		return err
	}
	bundles, err := repo.LoadBundlesForNode(bundleDir, cfg)
	if err != nil {
		return err
	}
	if validators == nil {
		validators = file.DefaultValidators(processors)
	}

	for _, b := range bundles {
		for _, bi := range b.Items {
			if bi.Type != "file" {
				return fmt.Errorf("applyrun: node %s: bundle %s: unsupported item type %q", n.Name, b.Name, bi.Type)
			}
			it, err := newFileItem(bi, processors, validators, n.runner)
			if err != nil {
				return fmt.Errorf("applyrun: node %s: bundle %s: %w", n.Name, b.Name, err)
			}
			n.items = append(n.items, it)
		}
	}
	return nil
}

func newFileItem(
	bi repo.BundleItem,
	processors map[string]file.ContentProcessor,
	validators file.AttributeValidators,
	runner transport.Runner,
) (item.Item, error) {
	attrs := file.Attributes{}
	if mode, ok := bi.Raw["mode"].(string); ok {
		attrs.Mode = mode
	}
	if owner, ok := bi.Raw["owner"].(string); ok {
		attrs.Owner = owner
	}
	if group, ok := bi.Raw["group"].(string); ok {
		attrs.Group = group
	}
	if contentType, ok := bi.Raw["content_type"].(string); ok {
		attrs.ContentType = contentType
	}
	if content, ok := bi.Raw["content"].(string); ok {
		attrs.Content = []byte(content)
	}
	return file.New(bi.Name, attrs, bi.Deps, processors, validators, runner)
}

// Result is the outcome of one node's apply run: a correlation id for
// log aggregation, the final counts, and a fatal error if the run
// could not complete (an unresolved or cyclic dependency graph).
type Result struct {
	RunID    string
	Node     string
	Counts   aggregate.Counts
	Fatal    error
	Duration time.Duration
}

// Apply runs every resolved item through the scheduler with the given
// worker count (forced to 1 when interactive is true) and aggregates
// the outcome. onEvent, if non-nil, is invoked with every
// scheduler.Event as it arrives -- the caller's hook for printing the
// per-item stream as the run progresses rather than waiting for the
// final Result.
func (n *Node) Apply(ctx context.Context, workers int, interactive bool, onEvent func(scheduler.Event)) Result {
	runID := uuid.NewString()
	logger := clog.FromContext(ctx).With("run_id", runID, "node", n.Name)
	ctx = clog.WithLogger(ctx, logger)
	progress := clog.NewProgress(logger)
	start := time.Now()

	logger.Info("apply starting", "items", len(n.items), "workers", workers, "interactive", interactive)

	events := scheduler.Run(ctx, n.items, workers, interactive)
	counts, fatal := aggregate.DrainFunc(events, onEvent)

	if fatal != nil {
		logger.Error("apply aborted", "err", fatal)
	}
	progress.Done(fmt.Sprintf("apply finished: %d correct, %d fixed, %d failed, %d aborted, %d unfixable",
		counts.Correct, counts.Fixed, counts.Failed, counts.Aborted, counts.Unfixable))

	return Result{RunID: runID, Node: n.Name, Counts: counts, Fatal: fatal, Duration: time.Since(start)}
}

// PreviewGraph builds the dependency graph over the node's resolved
// items without dispatching any of them, for a --dry-run invocation.
func (n *Node) PreviewGraph() ([]*graph.Node, error) {
	return graph.Build(n.items)
}

// Run executes a single ad hoc command on the node, bypassing the item
// scheduler entirely -- the equivalent of node.py's repl escape hatch.
func (n *Node) Run(ctx context.Context, command string, sudo bool) (*transport.Result, error) {
	return n.runner.Run(ctx, command, sudo)
}
