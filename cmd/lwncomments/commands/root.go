package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"lwncomments/lib/cachefile"
	"lwncomments/lib/configutil"
	"lwncomments/lib/scrapers/lwn"
	"lwncomments/lib/telemetry"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const prog = "lwncomments"

const defaultBaseUrl = "https://lwn.net"

// Config carries optional defaults from config.json5; flags win over it.
type Config struct {
	Username     string `json:"username"`
	PasswordFile string `json:"password_file"`
	BaseUrl      string `json:"base_url"`
	PageSize     int    `json:"page_size"`
}

var (
	username     *string
	passwordFile *string
	verbose      *bool
)

func init() {
	username = rootCmd.Flags().StringP("username", "u", "", "Account username.")
	passwordFile = rootCmd.Flags().StringP("password-file", "p", "", "File to read the password from (first line); prompts if omitted.")
	verbose = rootCmd.Flags().BoolP("verbose", "v", false, "Log every HTTP request to stderr.")
}

var rootCmd = &cobra.Command{
	Use:           "lwncomments",
	Short:         "Prints every comment you posted, quoted, caching fetched pages locally.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)
		return run(cmd.Context())
	},
}

// ExecuteContext runs the command and returns the process exit code,
// leaving the actual exit to the caller so its cleanups can run first.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %v\n", prog, err)
		return 1
	}
	return 0
}

func run(ctx context.Context) (err error) {
	cfg, err := configutil.Load[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if *username != "" {
		cfg.Username = *username
	}
	if *passwordFile != "" {
		cfg.PasswordFile = *passwordFile
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultBaseUrl
	}
	if cfg.Username == "" {
		return errors.New("username is required")
	}

	password, err := readPassword(cfg.PasswordFile)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	store := cachefile.New(cachefile.Options{})
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	client, err := lwn.NewClient(lwn.ClientOptions{BaseUrl: cfg.BaseUrl})
	if err != nil {
		return err
	}
	if err := client.Login(ctx, cfg.Username, password); err != nil {
		return err
	}
	defer client.Logout(ctx)

	return client.FetchComments(ctx, store, os.Stdout, cfg.PageSize)
}

// readPassword takes the first line of the given file, or prompts on the
// terminal (no echo) when no file was given. The trailing line break is
// trimmed; whether the result is usable is for the caller to decide.
func readPassword(path string) (string, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
