package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"luashell/internal/data/embedded"
	"luashell/internal/logger"
	"luashell/internal/storage"
)

var (
	initForce bool
	initList  bool
)

// initCmd seeds the module store with a starter module
var initCmd = &cobra.Command{
	Use:   "init [template]",
	Short: "Write a starter module into storage",
	Long: `Write an embedded template into storage as the main module.
The default template is 'main'; use --list to see the others.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing module")
	initCmd.Flags().BoolVar(&initList, "list", false, "List the embedded templates")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, args []string) error {
	if initList {
		names, err := embedded.ListTemplates()
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(names, "\n"))
		return nil
	}

	template := "main"
	if len(args) == 1 {
		template = args[0]
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	path, err := seedModule(ctx, store, template, cfg.MainModule, cfg.ScriptExt, initForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote '%s' from template '%s'\n", path, template)
	return nil
}

// seedModule writes template to the module file of name unless one exists.
func seedModule(ctx context.Context, store storage.Store, template, name, ext string, force bool) (string, error) {
	src, err := embedded.Template(template)
	if err != nil {
		return "", err
	}

	path := "/" + name + "." + ext
	if !force {
		exists, err := store.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("module '%s' already exists, use --force to overwrite", path)
		}
	}

	if err := store.Write(ctx, path, src); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.ModuleOperation("init", name, "template", template)
	return path, nil
}
