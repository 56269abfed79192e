package main

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"maps"
	"os"
	"os/user"
	"path/filepath"
	"slices"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/userweb/autoindex"
	"github.com/sagarc03/userweb/config"
)

const (
	layoutIndexPage = "index page"
	layoutListing   = "directory listing"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a site directory",
	Long: `Create a site directory (default: ~/www) with a starter index.html,
or with the files that customise the generated directory listing:
  - title:     listing title
  - header.md: shown above the entries
  - styles.css: stylesheet linked from the listing

Existing files are never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolP("yes", "y", false, "accept defaults without prompting")

	rootCmd.AddCommand(initCmd)
}

// scaffoldOptions describes the starter files for a new site.
type scaffoldOptions struct {
	Title  string
	Layout string
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return fmt.Errorf("find home directory: %w", homeErr)
		}
		dir = filepath.Join(home, cfg.Sites.Dir)
	}

	opts := scaffoldOptions{Title: defaultTitle(), Layout: layoutIndexPage}

	if !yes {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Create site in %s", dir),
			IsConfirm: true,
		}
		if _, promptErr := confirm.Run(); promptErr != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}

		titlePrompt := promptui.Prompt{
			Label:   "Site title",
			Default: opts.Title,
			Validate: func(input string) error {
				if input == "" {
					return errors.New("title is required")
				}
				return nil
			},
		}
		opts.Title, err = titlePrompt.Run()
		if err != nil {
			return handlePromptError(err)
		}

		layoutSelect := promptui.Select{
			Label: "Start with",
			Items: []string{layoutIndexPage, layoutListing},
		}
		_, opts.Layout, err = layoutSelect.Run()
		if err != nil {
			return handlePromptError(err)
		}
	}

	created, err := scaffold(dir, opts)
	if err != nil {
		return err
	}

	for _, p := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", p)
	}
	if len(created) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do, all files exist.")
	}
	return nil
}

// scaffold creates dir and the starter files for opts.Layout, skipping files
// that already exist. It returns the paths it created.
func scaffold(dir string, opts scaffoldOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create site directory: %w", err)
	}

	var files map[string]string
	switch opts.Layout {
	case layoutIndexPage:
		files = map[string]string{
			"index.html": indexPage(opts.Title),
		}
	case layoutListing:
		files = map[string]string{
			autoindex.TitleFile:      opts.Title + "\n",
			autoindex.HeaderMarkdown: "# " + opts.Title + "\n\nFiles shared from this site.\n",
			autoindex.StylesFile:     listingStyles,
		}
	default:
		return nil, fmt.Errorf("unknown layout %q", opts.Layout)
	}

	created := make([]string, 0, len(files))
	for _, name := range slices.Sorted(maps.Keys(files)) {
		p := filepath.Join(dir, name)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create %s: %w", name, err)
		}

		_, err = f.WriteString(files[name])
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return created, fmt.Errorf("write %s: %w", name, err)
		}

		created = append(created, p)
	}

	return created, nil
}

func defaultTitle() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "My site"
	}
	return u.Username + "'s site"
}

func indexPage(title string) string {
	t := html.EscapeString(title)
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>` + t + `</title>
</head>
<body>
<h1>` + t + `</h1>
<p>This page is served from index.html.</p>
</body>
</html>
`
}

const listingStyles = `body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
ol.entries { list-style: none; padding: 0; }
ol.entries li { display: flex; gap: 1rem; }
ol.entries .size { margin-left: auto; }
`

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
