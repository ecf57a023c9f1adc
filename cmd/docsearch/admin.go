package main

import (
	"encoding/json"
	"fmt"

	"docsearch/internal/app"
	"docsearch/internal/logging"
	"docsearch/internal/workspace"

	"github.com/spf13/cobra"
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "Manage workspaces",
}

var (
	wsDescription string
	wsColor       string
	wsIcon        string
	wsAccess      string
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces with document and chunk counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			list, err := a.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, ws := range list {
				cmd.Printf("%s %-12s %-30s docs=%d chunks=%d %s\n", ws.Icon, ws.ID, ws.Name, ws.DocumentCount, ws.ChunkCount, ws.AccessLevel)
			}
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			ws, err := a.Service.Create(cmd.Context(), workspace.CreateInput{
				Name:        args[0],
				Description: wsDescription,
				Color:       wsColor,
				Icon:        wsIcon,
				AccessLevel: wsAccess,
			})
			if err != nil {
				return err
			}
			cmd.Println(ws.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&wsDescription, "description", "", "workspace description")
	createCmd.Flags().StringVar(&wsColor, "color", "", "display color (hex)")
	createCmd.Flags().StringVar(&wsIcon, "icon", "", "display icon")
	createCmd.Flags().StringVar(&wsAccess, "access", "", "access level: private or public")

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a workspace with its documents, chunks and embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Service.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("deleted %s (%d documents)\n", args[0], n)
			return nil
		},
	}

	migrateOrphansCmd := &cobra.Command{
		Use:   "migrate-orphans",
		Short: "Move documents whose workspace no longer exists into main",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rep, err := a.Service.MigrateOrphans(cmd.Context())
			cmd.Printf("moved=%d failed=%d\n", rep.Moved, rep.Failed)
			return err
		},
	}

	workspacesCmd.AddCommand(listCmd, createCmd, deleteCmd, migrateOrphansCmd)
	rootCmd.AddCommand(workspacesCmd)
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect and manage ingested documents",
}

var docsLimit int

func init() {
	listCmd := &cobra.Command{
		Use:   "list [workspace]",
		Short: "List documents of a workspace, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := "main"
			if len(args) == 1 {
				ws = args[0]
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			docs, err := a.Service.ListDocuments(cmd.Context(), ws, docsLimit)
			if err != nil {
				return err
			}
			for _, d := range docs {
				cmd.Printf("%s %-10s %3d/%-3d %s\n", d.ID, d.Status, d.ChunksCreated, d.ChunksTotal, d.FileName)
			}
			return nil
		},
	}
	listCmd.Flags().IntVarP(&docsLimit, "limit", "n", 100, "maximum number of documents (0 for all)")

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a document with its chunks and embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Service.DeleteDocument(cmd.Context(), args[0])
		},
	}

	assignCmd := &cobra.Command{
		Use:   "assign [id] [workspace]",
		Short: "Move a document and its chunks to another workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Service.AssignDocument(cmd.Context(), args[0], args[1])
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a document with its stored chunks in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			doc, err := a.Service.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chunks, err := a.Chunks.ListChunksByDocument(cmd.Context(), doc.ID)
			if err != nil {
				return err
			}
			cmd.Printf("%s %s workspace=%s status=%s chunks=%d/%d\n", doc.ID, doc.FileName, doc.Workspace, doc.Status, doc.ChunksCreated, doc.ChunksTotal)
			if doc.StatusMessage != "" {
				cmd.Printf("message: %s\n", doc.StatusMessage)
			}
			for _, c := range chunks {
				cmd.Printf("\n--- chunk %d (%s) ---\n%s", c.ChunkIndex, c.ChunkID, c.Content)
			}
			cmd.Println()
			return nil
		},
	}

	documentsCmd.AddCommand(listCmd, showCmd, deleteCmd, assignCmd)
	rootCmd.AddCommand(documentsCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print the text extracted from a file without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ex := app.NewExtractor(cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
		res, err := ex.Extract(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal extraction: %w", err)
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
