package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"k8s.io/utils/ptr"

	"github.com/hashmap-kz/metanode/internal/applyrun"
	"github.com/hashmap-kz/metanode/internal/clog"
	"github.com/hashmap-kz/metanode/internal/printer"
	"github.com/hashmap-kz/metanode/internal/repo"
	"github.com/hashmap-kz/metanode/internal/scheduler"
)

// defaultSSHTimeout is used whenever --ssh-timeout is left unset, as
// opposed to explicitly set to 0 (which means "no timeout").
const defaultSSHTimeout = 10 * time.Second

type applyOptions struct {
	configPath  string
	bundleDir   string
	keyPath     string
	interactive bool
	workers     int
	dryRun      bool
	timeout     time.Duration
	sshTimeout  time.Duration
	verbose     int
}

// NewApplyCmd builds the "apply" subcommand: load a node's config and
// bundles, run the scheduler against it over SSH, and print the
// resulting counts -- or, under --dry-run, just the resolved graph.
func NewApplyCmd() *cobra.Command {
	ao := applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply --config FILE --bundle-dir DIR",
		Short: "Apply a node's metadata-driven configuration over SSH",
		Long: `apply resolves a node's layered metadata and bundles into a
dependency graph of items, then drives that graph to completion over a
single SSH connection, one item at a time per worker.

 * Composes metadata layers into an immutable snapshot
 * Builds the item dependency graph, injecting type-group nodes
 * Dispatches items across a fixed worker pool
 * Prints a per-node summary of correct/fixed/failed/aborted counts
`,
		Example: `
  # Apply a single node, four items in flight at once
  metanode apply --config web1.yaml --bundle-dir ./bundles --workers 4

  # Apply items one at a time (a single worker)
  metanode apply --config web1.yaml --bundle-dir ./bundles --interactive

  # Preview the resolved graph without applying any item
  metanode apply --config web1.yaml --bundle-dir ./bundles --dry-run
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ao.configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if ao.bundleDir == "" {
				return fmt.Errorf("--bundle-dir is required")
			}
			var sshTimeoutOverride *time.Duration
			if cmd.Flags().Changed("ssh-timeout") {
				sshTimeoutOverride = ptr.To(ao.sshTimeout)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), ao.timeout)
			defer cancel()
			return runApply(ctx, ao, sshTimeoutOverride)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false

	f.StringVar(&ao.configPath, "config", "", "Node config file (hostname, SSH user, bundle list).")
	f.StringVar(&ao.bundleDir, "bundle-dir", "", "Directory of metadata layers and a bundles/ subdirectory.")
	f.StringVar(&ao.keyPath, "ssh-key", "", "Path to an SSH private key. Defaults to $HOME/.ssh/id_ed25519.")
	f.BoolVar(&ao.interactive, "interactive", false, "Run items in interactive mode; forces --workers=1. The file item does not prompt.")
	f.IntVar(&ao.workers, "workers", 4, "Number of items to run concurrently.")
	f.BoolVar(&ao.dryRun, "dry-run", false, "Print the resolved item graph and exit without applying any item (the SSH connection is still opened).")
	f.DurationVar(&ao.timeout, "timeout", 5*time.Minute, "Overall timeout for the apply run.")
	f.DurationVar(&ao.sshTimeout, "ssh-timeout", defaultSSHTimeout, "SSH dial timeout override; unset keeps the built-in default.")
	f.CountVarP(&ao.verbose, "verbose", "v", "Increase log verbosity (-v for debug).")

	return cmd
}

func runApply(ctx context.Context, ao applyOptions, sshTimeoutOverride *time.Duration) error {
	logger := clog.New(os.Stderr, clog.LevelForVerbosity(ao.verbose))
	ctx = clog.WithLogger(ctx, logger)

	cfg, err := repo.LoadNodeConfig(ao.configPath)
	if err != nil {
		return err
	}

	sshConfig, err := buildSSHConfig(cfg.User, ao.keyPath, sshTimeoutOverride)
	if err != nil {
		return err
	}

	node, err := applyrun.Dial(ctx, cfg, sshConfig)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := node.Close(); closeErr != nil {
			logger.Warn("failed to close ssh connection", "err", closeErr)
		}
	}()

	if err := node.LoadBundles(ao.bundleDir, cfg, nil, nil); err != nil {
		return err
	}

	if ao.dryRun {
		nodes, err := node.PreviewGraph()
		if err != nil {
			return err
		}
		printer.PrintGraphPreview(os.Stdout, nodes)
		return nil
	}

	result := node.Apply(ctx, ao.workers, ao.interactive, func(ev scheduler.Event) {
		printer.PrintEvent(os.Stdout, ev)
	})
	printer.PrintResults(os.Stdout, []applyrun.Result{result})

	if result.Fatal != nil {
		return result.Fatal
	}
	if result.Counts.Failed > 0 || result.Counts.Aborted > 0 {
		return fmt.Errorf("apply: %d item(s) failed or aborted", result.Counts.Failed+result.Counts.Aborted)
	}
	return nil
}

// buildSSHConfig assembles the client config for dialing a node.
// timeoutOverride distinguishes "the user passed --ssh-timeout" from
// "the flag was left unset" -- a nil override keeps
// defaultSSHTimeout, while a non-nil one (including an explicit zero,
// meaning no timeout) always wins.
func buildSSHConfig(user, keyPath string, timeoutOverride *time.Duration) (*ssh.ClientConfig, error) {
	if keyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cmd: resolve home dir for default ssh key: %w", err)
		}
		keyPath = home + "/.ssh/id_ed25519"
	}
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: read ssh key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("cmd: parse ssh key %s: %w", keyPath, err)
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host key pinning is a deployment-time concern, see DESIGN.md
		Timeout:         ptr.Deref(timeoutOverride, defaultSSHTimeout),
	}, nil
}
