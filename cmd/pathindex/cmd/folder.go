package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathindex/internal/output"
	"github.com/Aman-CERP/pathindex/internal/store"
)

func newFolderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Attach, detach and list external folders",
		Long: `Manage the external folders attached to projects.

A folder belongs to one project; the same directory may be attached to
several projects. Folders are identified by id; any unique prefix of an
id is accepted.`,
		Example: `  pathindex folder add ~/work/app ~/Design/Assets
  pathindex folder list --project ~/work/app
  pathindex folder remove 0d6f1c2a`,
	}

	cmd.AddCommand(newFolderAddCmd(a))
	cmd.AddCommand(newFolderRemoveCmd(a))
	cmd.AddCommand(newFolderListCmd(a))
	return cmd
}

func newFolderAddCmd(a *app) *cobra.Command {
	var indexNow, noTUI bool

	cmd := &cobra.Command{
		Use:   "add <project> <folder>",
		Short: "Attach a folder to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := a.openBackend()
			if err != nil {
				return err
			}
			f, err := b.AddFolder(cmd.Context(), args[0], args[1])
			closeFn()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Added %s to %s", f.FolderPath, f.ProjectPath)
			out.Status("", "id: "+f.ID)
			a.logger.Info("cli_folder_added", slog.String("folder_id", f.ID))

			if indexNow {
				return runIndex(cmd, a, indexOptions{ids: []string{f.ID}, noTUI: noTUI})
			}
			out.Hint(fmt.Sprintf("Index it with 'pathindex index %s'", shortID(f.ID)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&indexNow, "index", false, "Index the folder right away")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Plain progress output with --index")
	return cmd
}

func newFolderRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <folder-id>",
		Aliases: []string{"rm"},
		Short:   "Detach a folder and delete its index entries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := a.openBackend()
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := resolveFolder(cmd.Context(), b, args[0])
			if err != nil {
				return err
			}
			if err := b.RemoveFolder(cmd.Context(), f.ID); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Removed %s (%d files dropped from the index)", f.FolderPath, f.FileCount)
			return nil
		},
	}
}

func newFolderListCmd(a *app) *cobra.Command {
	var (
		project    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List attached folders",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, closeFn, err := a.openBackend()
			if err != nil {
				return err
			}
			defer closeFn()

			folders, err := b.ListFolders(cmd.Context(), project)
			if err != nil {
				return err
			}

			if jsonOutput {
				if folders == nil {
					folders = []store.ProjectFolder{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(folders)
			}

			out := output.New(cmd.OutOrStdout())
			if len(folders) == 0 {
				out.Status("", "No folders attached.")
				out.Hint("Attach one with 'pathindex folder add <project> <folder>'")
				return nil
			}
			out.Table([]string{"ID", "STATUS", "FILES", "INDEXED", "FOLDER", "PROJECT"}, folderRows(folders))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Only folders of this project")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func folderRows(folders []store.ProjectFolder) [][]string {
	rows := make([][]string, 0, len(folders))
	for _, f := range folders {
		status := string(f.Status)
		if f.Status == store.StatusError && f.ErrorMessage != "" {
			status += ": " + f.ErrorMessage
		}
		indexed := "never"
		if f.LastIndexedAt != nil {
			indexed = f.LastIndexedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			shortID(f.ID), status, strconv.Itoa(f.FileCount), indexed, f.FolderPath, f.ProjectPath,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
