package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"filekeep/internal/app"
	"filekeep/internal/config"
	"filekeep/internal/encryption"
	"filekeep/internal/keep"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). withSync starts the filesystem synchronizer alongside.
func newApp(withSync bool) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, withSync)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "filekeep",
	Short: "Self-hosted file keeper with compression, encryption, and sync",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.InstanceID = keep.UUIDGenerator{}.New()

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		if err := encryption.Setup(cfg.Encryption.IdentityPath); err != nil {
			return fmt.Errorf("failed to generate encryption identity: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Encryption identity: %s\n", cfg.Encryption.IdentityPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID:  %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Storage Root: %s\n", cfg.Storage.Root)
		fmt.Printf("Store:        %s\n", cfg.Store.Type)
		fmt.Printf("Search:       %s\n", cfg.Search.Type)
		fmt.Printf("Sync:         enabled=%v replica=%s\n", cfg.Sync.Enabled, cfg.Sync.Replica.Type)
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files into the storage root",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		// Per-file results: one failure does not abort the batch.
		failed := 0
		for _, arg := range args {
			logical, err := uploadOne(a.Service(), arg)
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", arg, err)
				continue
			}
			fmt.Printf("OK   %s -> %s\n", arg, logical)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d upload(s) failed", failed, len(args))
		}
		return nil
	},
}

func uploadOne(svc *keep.Service, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	return svc.Ingest(filepath.Base(path), f, info.Size())
}

// get command
var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Retrieve a file's original content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if output == "" {
			output = filepath.Base(args[0])
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}

		if err := a.Service().Retrieve(args[0], f); err != nil {
			f.Close()
			os.Remove(output)
			return fmt.Errorf("retrieving: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}

		fmt.Printf("Retrieved %s -> %s\n", args[0], output)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list [SUBDIR]",
	Short: "List stored files",
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		subdir := ""
		if len(args) > 0 {
			subdir = args[0]
		}

		entries, err := a.Service().List(subdir, recursive)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No files found.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%-20s  %10d  %s  %s\n",
				e.Category,
				e.Size,
				e.ModTime.Format("2006-01-02 15:04:05"),
				e.Path,
			)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete PATH...",
	Short: "Delete stored files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, arg := range args {
			if err := a.Service().Delete(arg); err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", arg, err)
				continue
			}
			fmt.Printf("Deleted %s\n", arg)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d deletion(s) failed", failed, len(args))
		}
		return nil
	},
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage file versions",
}

var versionCreateCmd = &cobra.Command{
	Use:   "create PATH",
	Short: "Snapshot the current content as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Service().CreateVersion(args[0])
		if err != nil {
			return fmt.Errorf("creating version: %w", err)
		}

		fmt.Printf("Created version %d of %s\n", v.Version, args[0])
		return nil
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list PATH",
	Short: "List versions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		versions := a.Service().Versions(args[0])
		if len(versions) == 0 {
			fmt.Println("No versions.")
			return nil
		}

		for _, v := range versions {
			fmt.Printf("v%d  %s  %s\n", v.Version, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Path)
		}
		return nil
	},
}

// meta command
var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Manage file metadata",
}

var metaGetCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "View a file's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		attrs := a.Service().Metadata(args[0])
		if len(attrs) == 0 {
			fmt.Println("No metadata.")
			return nil
		}

		for k, v := range attrs {
			fmt.Printf("%s = %v\n", k, v)
		}
		return nil
	},
}

var metaSetCmd = &cobra.Command{
	Use:   "set PATH KEY=VALUE...",
	Short: "Set metadata attributes on a file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs := keep.Attributes{}
		for _, pair := range args[1:] {
			k, v, ok := splitPair(pair)
			if !ok {
				return fmt.Errorf("invalid attribute %q, expected KEY=VALUE", pair)
			}
			attrs[k] = v
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().UpdateMetadata(args[0], attrs); err != nil {
			return err
		}

		fmt.Printf("Updated %d attribute(s) on %s\n", len(attrs), args[0])
		return nil
	},
}

func splitPair(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], i > 0
		}
	}
	return "", "", false
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage file comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add PATH TEXT",
	Short: "Add a comment to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Service().AddComment(args[0], args[1], user)
		if err != nil {
			return err
		}

		fmt.Printf("Comment added by %s\n", c.User)
		return nil
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list PATH",
	Short: "List comments on a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		comments := a.Service().Comments(args[0])
		if len(comments) == 0 {
			fmt.Println("No comments.")
			return nil
		}

		for _, c := range comments {
			fmt.Printf("%s  %-12s  %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"), c.User, c.Text)
		}
		return nil
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share PATH...",
	Short: "Create expiring share tokens",
	Long: `Create expiring share tokens for one or more stored files.

Tokens live in the memory of the issuing process only. They can be
resolved and revoked while that process runs (a long-lived "filekeep
sync" daemon, or a program embedding the service); a token printed
here is unknown to any later CLI invocation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttlHours, _ := cmd.Flags().GetInt("ttl")
		protect, _ := cmd.Flags().GetBool("password")

		password := ""
		if protect {
			var err error
			password, err = promptPassword("Share password: ")
			if err != nil {
				return err
			}
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ttl := time.Duration(ttlHours) * time.Hour
		if ttlHours < 0 {
			ttl = a.ShareTTL()
		}

		failed := 0
		for _, arg := range args {
			token, err := a.Service().Share(arg, password, ttl)
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", arg, err)
				continue
			}
			fmt.Printf("%s\t%s\n", arg, token)
		}
		fmt.Printf("Tokens expire in %s\n", ttl)

		if failed > 0 {
			return fmt.Errorf("%d of %d share(s) failed", failed, len(args))
		}
		return nil
	},
}

var shareResolveCmd = &cobra.Command{
	Use:   "resolve TOKEN",
	Short: "Resolve a share token to its file",
	Long: `Resolve a share token to the file path it grants access to.

Only tokens issued by this same process can resolve; the registry is
in-memory, so tokens do not survive across CLI invocations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		logical, err := a.Service().ResolveShare(args[0], "")
		if errors.Is(err, keep.ErrPasswordRequired) {
			password, perr := promptPassword("Share password: ")
			if perr != nil {
				return perr
			}
			logical, err = a.Service().ResolveShare(args[0], password)
		}
		if err != nil {
			return fmt.Errorf("resolving share: %w", err)
		}

		fmt.Println(logical)
		return nil
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke TOKEN",
	Short: "Revoke a share token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RevokeShare(args[0]); err != nil {
			return fmt.Errorf("revoking share: %w", err)
		}

		fmt.Println("Share revoked.")
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search indexed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		docs := a.Service().Search(args[0])
		if len(docs) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for _, d := range docs {
			fmt.Printf("%-20s  %10d  %s\n", d.Type, d.Size, d.Path)
		}
		return nil
	},
}

// preview command
var previewCmd = &cobra.Command{
	Use:   "preview PATH",
	Short: "Preview a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().Preview(args[0])
		if err != nil {
			return err
		}

		if p.Content != nil {
			os.Stdout.Write(p.Content)
			return nil
		}
		fmt.Printf("%s preview, stream with: filekeep get %s\n", p.Kind, p.Path)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Watch the storage root and mirror changes to the replica",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Synchronizing. Press Ctrl-C to stop.")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Println("Stopping.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// version subcommands
	versionCmd.AddCommand(versionCreateCmd)
	versionCmd.AddCommand(versionListCmd)

	// meta subcommands
	metaCmd.AddCommand(metaGetCmd)
	metaCmd.AddCommand(metaSetCmd)

	// comment subcommands
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
	commentAddCmd.Flags().StringP("user", "u", "", "Comment author (default: anonymous)")

	// share subcommands
	shareCmd.AddCommand(shareResolveCmd)
	shareCmd.AddCommand(shareRevokeCmd)
	shareCmd.Flags().IntP("ttl", "t", -1, "Token lifetime in hours (default: configured value)")
	shareCmd.Flags().BoolP("password", "p", false, "Protect the token with a password")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Output file (default: the file's base name)")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(syncCmd)
}
