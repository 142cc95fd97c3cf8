package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/neutron-sync/neutron-sync/internal/app"
	"github.com/neutron-sync/neutron-sync/internal/config"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
	codeText    = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "nsync",
	Short: "Synchronize dotfiles and secrets across machines through a git repository",
}

var initCmd = &cobra.Command{
	Use:   "init <repo>",
	Short: "Initialize configuration for an existing repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if info, err := os.Stat(repoDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", repoDir)
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(repoDir, defaults["base_dir"], defaults["home_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return err
		}

		fmt.Printf("%s Configuration initialized at %s\n", successText("✓"), defaults["config_path"])
		fmt.Printf("  Repository: %s\n", repoDir)
		return nil
	},
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the machine identity used for secret entries",
}

var identityInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the machine identity key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("IdentityInit")
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.IdentityInit()
		if err != nil {
			return err
		}
		fmt.Printf("%s Identity written to %s\n", successText("✓"), path)
		fmt.Println("  Include this file when bootstrapping a new machine: nsync send")
		return nil
	},
}

var (
	linkSecret  bool
	linkSkipAsk bool
)

var linkCmd = &cobra.Command{
	Use:   "link <path>...",
	Short: "Move paths into the repository and leave symlinks behind",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Link")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Link(args, linkSecret)
		for _, e := range entries {
			fmt.Printf("%s linked %s (mode %04o)\n", successText("✓"), e.Path, uint32(e.Mode))
		}
		if err != nil {
			return err
		}

		if linkSkipAsk || confirm("Push changes?") {
			if err := a.Save(); err != nil {
				return err
			}
			fmt.Printf("%s pushed\n", successText("✓"))
		}
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <path>",
	Short: "Stop tracking a path and restore its content in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Unlink")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Unlink(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s unlinked %s\n", successText("✓"), args[0])
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Commit and push all repository changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Save")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Save(); err != nil {
			return err
		}
		fmt.Printf("%s saved\n", successText("✓"))
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch remote changes and reconcile local links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Pull")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Pull()
		if err != nil {
			return err
		}

		for _, p := range report.Linked {
			fmt.Printf("%s linked %s\n", successText("✓"), p)
		}
		for _, p := range report.Restored {
			fmt.Printf("%s restored %s\n", successText("✓"), p)
		}
		for _, p := range report.Removed {
			fmt.Printf("%s removed stale link %s\n", successText("✓"), p)
		}
		for _, c := range report.Conflicts {
			fmt.Printf("%s conflict at %s: %s\n", warnText("!"), c.Path, c.Reason)
		}
		if report.Empty() {
			fmt.Println("Already up to date.")
		}
		if len(report.Conflicts) > 0 {
			return fmt.Errorf("%d path conflict(s); resolve them and pull again", len(report.Conflicts))
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List tracked entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Entries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No tracked entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-10s %04o  %s\n", e.Kind, uint32(e.Mode), e.Path)
		}
		return nil
	},
}

var (
	sendTTL   time.Duration
	sendFiles []string
)

var sendCmd = &cobra.Command{
	Use:   "send [file...]",
	Short: "Seal files and submit them to the relay under a one-time code",
	Long: "Seals the given files (plus the machine identity key by default) into an\n" +
		"encrypted bundle and submits it to the relay. The printed code and the\n" +
		"passphrase you choose are what the receiving machine needs; the relay\n" +
		"never sees either the plaintext or the passphrase.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Send")
		if err != nil {
			return err
		}
		defer a.Close()

		paths := append([]string{}, args...)
		paths = append(paths, sendFiles...)
		if len(paths) == 0 {
			identity, err := a.IdentityPath()
			if err != nil {
				return fmt.Errorf("nothing to send: %w", err)
			}
			paths = []string{identity}
		}

		passphrase, err := readPassphrase(true)
		if err != nil {
			return err
		}

		code, expiresAt, err := a.Send(cmd.Context(), paths, passphrase, sendTTL)
		if err != nil {
			return err
		}

		fmt.Printf("%s %d file(s) submitted\n", successText("✓"), len(paths))
		fmt.Printf("  Code:    %s\n", codeText(code))
		fmt.Printf("  Expires: %s\n", expiresAt.Local().Format(time.RFC1123))
		fmt.Println("  Run `nsync receive " + code + "` on the other machine before then.")
		return nil
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive <code>",
	Short: "Retrieve and decrypt a one-time transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Receive")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase(false)
		if err != nil {
			return err
		}

		written, err := a.Receive(cmd.Context(), args[0], passphrase)
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Printf("%s wrote %s\n", successText("✓"), p)
		}
		return nil
	},
}

// readPassphrase prompts on the terminal without echo. When confirm is true
// the passphrase must be entered twice.
func readPassphrase(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(first), nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	linkCmd.Flags().BoolVar(&linkSecret, "secret", false, "store the repository copy encrypted to the machine identity")
	linkCmd.Flags().BoolVarP(&linkSkipAsk, "yes", "y", false, "skip confirmation prompts")
	sendCmd.Flags().DurationVar(&sendTTL, "ttl", 0, "how long the relay keeps the transfer (default: config value)")
	sendCmd.Flags().StringArrayVar(&sendFiles, "file", nil, "additional file to include in the bundle")

	identityCmd.AddCommand(identityInitCmd)
	rootCmd.AddCommand(initCmd, identityCmd, linkCmd, unlinkCmd, saveCmd, pullCmd, statusCmd, sendCmd, receiveCmd)
}
