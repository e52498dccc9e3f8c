package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter minuet.toml",
	Long: `Create a starter configuration (minuet.toml) and an entry script
(src/index.js). If [dir] is omitted, initializes the current directory. A
missing directory is created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// runInit writes minuet.toml into the target directory and refuses to
// overwrite an existing one. The entry script is only created when absent.
func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err = os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	configPath := filepath.Join(target, "minuet.toml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("already initialized: %s exists", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	entryPath := filepath.Join(target, "src", "index.js")
	createdEntry := false
	if _, err := os.Stat(entryPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
			return fmt.Errorf("failed to create src: %w", err)
		}
		if err := os.WriteFile(entryPath, []byte(starterEntry), 0o600); err != nil {
			return fmt.Errorf("failed to write src/index.js: %w", err)
		}
		createdEntry = true
	}

	out := cmd.OutOrStdout()
	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(out, "Initialized minuet project in %s\n", rel)
	fmt.Fprintf(out, "  - minuet.toml\n")
	if createdEntry {
		fmt.Fprintf(out, "  - src/index.js\n")
	} else {
		fmt.Fprintf(out, "  - src/index.js (existing)\n")
	}
	return nil
}

const starterConfig = `# minuet build configuration
context = "src"
outputRoot = "../public"
filenameTemplate = "{name}.js"
chunkFilenameTemplate = "{name}.{chunkhash:8}.js"
sourceMapFilenameTemplate = "{name}.map"
publicPath = "/"
manifest = "manifest.json"

[entries]
main = "./index"

[resolve]
extensions = ["", ".js"]
searchRoots = [".", "../node_modules"]

# Chains run in declared order: the first loader receives the file content.
[[loaderRules]]
test = '\.js$'
exclude = 'node_modules'
chain = ["script?sourceMap"]

[[loaderRules]]
test = '\.scss$'
chain = ["sass?outputStyle=expanded", "css", "style"]
`

const starterEntry = `// minuet entry point
console.log("hello from minuet");
`
